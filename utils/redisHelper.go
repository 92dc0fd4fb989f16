package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
)

/*
Redis key layout:

	draft:$userId:$date:$moduleId     in-progress row snapshot (scratch space)
	savedHash:$date:$creatorId:$moduleId   hash of the last persisted row set
*/

func GetDraftLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("DRAFT_LIFESPAN_HOURS"))
	if err != nil {
		lifespan = 72
	}
	return time.Duration(lifespan) * time.Hour
}

func draftKey(userId int, date string, moduleId int) string {
	return fmt.Sprintf("draft:%d:%s:%d", userId, date, moduleId)
}

func savedHashKey(date string, creatorId int, moduleId int) string {
	return fmt.Sprintf("savedHash:%s:%d:%d", date, creatorId, moduleId)
}

// StoreDraft mirrors the in-progress edit so a failed remote save loses nothing.
// obj should be a pointer.
func StoreDraft(userId int, date string, moduleId int, obj any) error {
	return config.SetRedisObject(draftKey(userId, date, moduleId), obj, GetDraftLifespan())
}

// RetrieveDraft reads a mirrored edit back. Returns exists=false when there is
// no draft (or Redis is not configured).
func RetrieveDraft(userId int, date string, moduleId int, dest any) (bool, error) {
	return config.GetRedisObject(draftKey(userId, date, moduleId), dest)
}

// ClearDraft is called only after a confirmed successful remote save.
func ClearDraft(userId int, date string, moduleId int) error {
	return config.RemoveRedisKey(draftKey(userId, date, moduleId))
}

// StoreSavedHash records the content hash of the last successfully persisted
// row set so other instances can also skip no-op writes.
func StoreSavedHash(date string, creatorId int, moduleId int, hash string) error {
	return config.SetRedisValue(savedHashKey(date, creatorId, moduleId), hash, 0)
}

func RetrieveSavedHash(date string, creatorId int, moduleId int) (string, bool, error) {
	return config.GetRedisValue(savedHashKey(date, creatorId, moduleId))
}
