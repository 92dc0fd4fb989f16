package models

import (
	"log"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{}, &FieldModule{},
		&DailyReport{}, &OrderActivityRow{}, &StaffActivityRow{},
		&BankCard{}, &BankCardTransaction{},
		&NotificationRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
