package boot

import (
	"log"

	"qrshop/src/common"
	"qrshop/src/db"
	"qrshop/src/models"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Site{},
		&models.Slot{},
		&models.Order{},
		&models.Booking{},
		&models.Tip{},
		&models.WebhookEvent{},
		&models.OutboxMessage{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitWorkers() {
	common.StartOutboxWorker()
}
