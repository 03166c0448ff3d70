package models

import (
	"log"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ManufacturingSnapshot{},
		&StockLedgerEntry{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
