package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/fieldops_backend/middlewares"
	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
	"bitbucket.org/mmdatafocus/fieldops_backend/workflow"
)

// moduleVerifier is the one-time-code collaborator for module deletion. nil
// until a deployment wires an adapter in; deletion is refused meanwhile.
var moduleVerifier models.Verifier

// SetModuleVerifier installs the verification adapter.
func SetModuleVerifier(v models.Verifier) {
	moduleVerifier = v
}

func registerRoutes(r *gin.Engine, debouncer *workflow.Debouncer) {
	r.POST("/api/login", loginHandler())

	api := r.Group("/api", middlewares.AuthMiddleware(), middlewares.RequireAuth())
	{
		api.GET("/reports", searchReportsHandler())
		api.GET("/reports/:id", getReportHandler())
		api.POST("/reports/save", saveReportHandler(debouncer))
		api.DELETE("/reports/:id", deleteReportHandler())
		api.POST("/reports/draft", storeDraftHandler())
		api.GET("/reports/draft", retrieveDraftHandler())

		api.GET("/days/:date", dayAggregateHandler())
		api.GET("/days/:date/reports", dayReportsHandler())
		api.GET("/days/:date/export", dayExportHandler())

		api.GET("/cards", listCardsHandler())
		api.GET("/cards/:id", getCardHandler())
		api.GET("/cards/:id/transactions", listCardTransactionsHandler())

		api.GET("/modules", listModulesHandler())
	}

	admin := r.Group("/api", middlewares.AuthMiddleware(), middlewares.RequireAuth(), middlewares.RequireAdmin())
	{
		admin.POST("/cards", createCardHandler())
		admin.PUT("/cards/:id", updateCardHandler())
		admin.DELETE("/cards/:id", deleteCardHandler())
		admin.POST("/cards/:id/transactions", createCardTransactionHandler())
		admin.POST("/cards/:id/recompute", recomputeCardHandler())

		admin.POST("/modules", createModuleHandler())
		admin.PUT("/modules/:id", updateModuleHandler())
		admin.POST("/modules/:id/send-code", sendModuleDeleteCodeHandler())
		admin.DELETE("/modules/:id", deleteModuleHandler())

		admin.POST("/users", createUserHandler())
	}
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch err {
	case utils.ErrorRecordNotFound:
		status = http.StatusNotFound
	case utils.ErrorSaveInFlight:
		status = http.StatusConflict
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func paramDate(c *gin.Context) (time.Time, bool) {
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want yyyy-mm-dd"})
		return time.Time{}, false
	}
	return date, true
}

func loginHandler() gin.HandlerFunc {
	type loginInput struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var input loginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, user, err := models.Login(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

// saveInput is the wire form of a save: manual or autosave, own view or the
// multi-author parent view.
type saveInput struct {
	Date       string                    `json:"date" binding:"required"`
	ModuleId   int                       `json:"module_id" binding:"required"`
	Notes      string                    `json:"notes"`
	OrderRows  []models.OrderActivityRow `json:"order_rows"`
	StaffRows  []models.StaffActivityRow `json:"staff_rows"`
	Manual     bool                      `json:"manual"`
	ParentView bool                      `json:"parent_view"`
}

func saveReportHandler(debouncer *workflow.Debouncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input saveInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want yyyy-mm-dd"})
			return
		}
		ctx := c.Request.Context()
		userId, _ := utils.GetUserIdFromContext(ctx)

		result, err := workflow.SaveDailyReport(ctx, workflow.SaveReportInput{
			Date:       date,
			CreatorId:  userId,
			ModuleId:   input.ModuleId,
			Notes:      input.Notes,
			OrderRows:  input.OrderRows,
			StaffRows:  input.StaffRows,
			Manual:     input.Manual,
			ParentView: input.ParentView,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !result.Skipped && debouncer != nil {
			debouncer.Signal(input.Date)
		}
		c.JSON(http.StatusOK, result)
	}
}

func searchReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		creatorId, _ := strconv.Atoi(c.Query("creator_id"))
		moduleId, _ := strconv.Atoi(c.Query("module_id"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))

		if dateStr := c.Query("date"); dateStr != "" {
			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want yyyy-mm-dd"})
				return
			}
			if creatorId == 0 {
				creatorId, _ = utils.GetUserIdFromContext(ctx)
			}
			report, err := models.FindDailyReport(ctx, date, creatorId, moduleId)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"reports": []*models.DailyReport{report}})
			return
		}

		reports, err := models.SearchDailyReports(ctx, creatorId, moduleId, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports})
	}
}

func getReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		report, err := models.GetDailyReport(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func deleteReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		report, err := models.GetDailyReport(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		// Autosaves racing the deletion must not resurrect the report.
		key := workflow.SaveKey(utils.DateKey(report.ReportDate), report.CreatorId, report.ModuleId)
		release := workflow.Guard.Suppress(key)
		defer release()

		cardIds, err := models.ListCashBoxCardIdsForReport(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		deleted, err := models.DeleteDailyReport(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		for _, cardId := range cardIds {
			if _, rcErr := workflow.RecomputeCardBalance(ctx, cardId, id); rcErr != nil {
				_ = c.Error(rcErr)
			}
		}
		c.JSON(http.StatusOK, deleted)
	}
}

func storeDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input saveInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		if err := utils.StoreDraft(userId, input.Date, input.ModuleId, input); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func retrieveDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		moduleId, _ := strconv.Atoi(c.Query("module_id"))
		dateStr := c.Query("date")
		var draft saveInput
		found, err := utils.RetrieveDraft(userId, dateStr, moduleId, &draft)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !found {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, draft)
	}
}

func loadDayAggregate(c *gin.Context) (*workflow.DayAggregate, bool) {
	date, ok := paramDate(c)
	if !ok {
		return nil, false
	}
	ctx := c.Request.Context()
	reports, err := models.ListDailyReportsByDate(ctx, date)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	agg := workflow.MergeDayReports(reports, func(creatorId int) string {
		user, err := models.GetUser(ctx, creatorId)
		if err != nil {
			return ""
		}
		return user.Name
	})
	return agg, true
}

func dayAggregateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agg, ok := loadDayAggregate(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, agg)
	}
}

// dayReportsHandler backs the editable parent view: all reports of the day
// with every row tagged with its origin report.
func dayReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := paramDate(c)
		if !ok {
			return
		}
		reports, err := models.ListDailyReportsByDate(c.Request.Context(), date)
		if err != nil {
			abortWithError(c, err)
			return
		}
		for _, report := range reports {
			for i := range report.OrderRows {
				report.OrderRows[i].OriginReportId = report.ID
			}
			for i := range report.StaffRows {
				report.StaffRows[i].OriginReportId = report.ID
			}
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports})
	}
}

func dayExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agg, ok := loadDayAggregate(c)
		if !ok {
			return
		}
		f, err := workflow.ExportDayAggregateExcel(agg)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="day-`+agg.DateKey+`.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}

func listCardsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		cards, err := models.GetBankCards(c.Request.Context(), name)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": cards})
	}
}

func getCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		card, err := models.GetBankCard(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	}
}

func createCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBankCard
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		card, err := models.CreateBankCard(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, card)
	}
}

func updateCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewBankCard
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		card, err := models.UpdateBankCard(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	}
}

func deleteCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		card, err := models.DeleteBankCard(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	}
}

func listCardTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		txns, err := models.ListCardTransactions(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txns})
	}
}

func createCardTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewBankCardTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.CardId = id
		ctx := c.Request.Context()
		txn, err := models.CreateManualCardTransaction(ctx, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		balance, err := workflow.RecomputeCardBalance(ctx, id, 0)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"transaction": txn, "current_balance": balance})
	}
}

func recomputeCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		balance, err := workflow.RecomputeCardBalance(c.Request.Context(), id, 0)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"current_balance": balance})
	}
}

func listModulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		modules, err := models.GetFieldModules(c.Request.Context(), name)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"modules": modules})
	}
}

func createModuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewFieldModule
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		module, err := models.CreateFieldModule(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, module)
	}
}

func updateModuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewFieldModule
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		module, err := models.UpdateFieldModule(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, module)
	}
}

func sendModuleDeleteCodeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if moduleVerifier == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification service not configured"})
			return
		}
		if err := moduleVerifier.SendCode(c.Request.Context(), "module-delete"); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func deleteModuleHandler() gin.HandlerFunc {
	type deleteInput struct {
		Code string `json:"code" binding:"required"`
	}
	return func(c *gin.Context) {
		id, ok := paramId(c)
		if !ok {
			return
		}
		if moduleVerifier == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification service not configured"})
			return
		}
		var input deleteInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		module, err := models.DeleteFieldModule(c.Request.Context(), id, moduleVerifier, input.Code)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, module)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}
