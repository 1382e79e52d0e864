// Package main seeds the reference data the settlement engine needs to
// run: the pricing tier table, invoice categories, and (outside
// production) a demo merchant with an outlet, a terminal and a default
// payout method.
package main

import (
	"log"

	"payrail/internal/config"
	"payrail/internal/models"
	"payrail/internal/repositories"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer func() {
		if repositories.DB != nil {
			if sqlDB, err := repositories.DB.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					log.Printf("failed to close database connection: %v", err)
				}
			}
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("failed to close redis connection: %v", err)
			}
		}
	}()

	db := repositories.DB

	if err := seedTiers(db); err != nil {
		log.Fatalf("failed to seed tiers: %v", err)
	}
	log.Println("tiers seeded")

	if err := seedCategories(db); err != nil {
		log.Fatalf("failed to seed invoice categories: %v", err)
	}
	log.Println("invoice categories seeded")

	if !config.IsProduction() {
		if err := seedDemoMerchant(db); err != nil {
			log.Fatalf("failed to seed demo merchant: %v", err)
		}
		log.Println("demo merchant seeded")
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedTiers upserts the built-in pricing ladder keyed by name, so
// re-running the seeder refreshes rates without duplicating rows.
func seedTiers(db *gorm.DB) error {
	tiers := []models.Tier{
		{
			Name:             models.TierBasic,
			Rank:             1,
			FeePercent:       dec("3.0"),
			FeeMinimum:       dec("50"),
			FeeMaximum:       dec("2500"),
			PayoutFeePercent: dec("1.0"),
		},
		{
			Name:              models.TierStandard,
			Rank:              2,
			FeePercent:        dec("2.5"),
			FeeMinimum:        dec("50"),
			FeeMaximum:        dec("2000"),
			PayoutFeePercent:  dec("0.75"),
			MinVolume30d:      dec("500000"),
			MinCount30d:       50,
			MinAccountAgeDays: 30,
		},
		{
			Name:              models.TierPremium,
			Rank:              3,
			FeePercent:        dec("2.0"),
			FeeMinimum:        dec("50"),
			FeeMaximum:        dec("1500"),
			PayoutFeePercent:  dec("0.5"),
			MinVolume30d:      dec("5000000"),
			MinCount30d:       250,
			MinAccountAgeDays: 90,
		},
		{
			Name:              models.TierEnterprise,
			Rank:              4,
			FeePercent:        dec("1.5"),
			FeeMinimum:        dec("50"),
			FeeMaximum:        dec("1000"),
			PayoutFeePercent:  dec("0.25"),
			MinVolume30d:      dec("50000000"),
			MinCount30d:       1000,
			MinAccountAgeDays: 180,
		},
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"rank", "fee_percent", "fee_minimum", "fee_maximum",
			"payout_fee_percent", "min_volume30d", "min_count30d",
			"min_account_age_days", "updated_at",
		}),
	}).Create(&tiers).Error
}

func seedCategories(db *gorm.DB) error {
	categories := []models.InvoiceCategory{
		{Name: "general", FeeMultiplier: dec("1.0")},
		{Name: "healthcare", FeeMultiplier: dec("0.8")},
		{Name: "education", FeeMultiplier: dec("0.9")},
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"fee_multiplier", "updated_at"}),
	}).Create(&categories).Error
}

func seedDemoMerchant(db *gorm.DB) error {
	var existing models.Merchant
	err := db.Where("email = ?", "demo@payrail.test").First(&existing).Error
	if err == nil {
		log.Println("demo merchant already exists")
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		merchant := models.Merchant{
			BusinessName: "Demo Stores Ltd",
			BusinessType: "retail",
			Email:        "demo@payrail.test",
			Phone:        "+2348000000000",
			Status:       models.MerchantStatusActive,
		}
		if err := tx.Create(&merchant).Error; err != nil {
			return err
		}

		outlet := models.Outlet{
			MerchantID: merchant.ID,
			Name:       "Main Branch",
			Address:    "1 Marina Road, Lagos",
			Status:     "active",
		}
		if err := tx.Create(&outlet).Error; err != nil {
			return err
		}

		terminal := models.Terminal{
			MerchantID:   merchant.ID,
			OutletID:     outlet.ID,
			SerialNumber: "DEMO-TERM-0001",
			Status:       "active",
		}
		if err := tx.Create(&terminal).Error; err != nil {
			return err
		}

		method := models.PayoutMethod{
			MerchantID:    merchant.ID,
			Type:          models.PayoutMethodBank,
			BankName:      "Demo Bank",
			BankCode:      "058",
			AccountNumber: "0123456789",
			AccountName:   "Demo Stores Ltd",
			IsDefault:     true,
		}
		return tx.Create(&method).Error
	})
}
