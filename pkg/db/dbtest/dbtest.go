// Package dbtest opens isolated in-memory sqlite ledgers for package tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// Open returns a fresh, fully migrated database unique to the calling test.
func Open(t *testing.T, prefix string) *gorm.DB {
	t.Helper()
	dsn := "file:" + prefix + "_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// One connection keeps shared-cache sqlite from reporting table locks
	// when tests drive concurrent requests.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Models lists every table the ledger owns.
func Models() []any {
	return []any{
		&models.Product{},
		&models.ProductVariant{},
		&models.Cart{},
		&models.CartItem{},
		&models.Transaction{},
		&models.Order{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// SeedProduct inserts a product, and its variants when variantStocks is non-empty.
// With variants the product stock is their sum.
func SeedProduct(t *testing.T, conn *gorm.DB, name string, priceMinor int64, stock int, variantStocks map[string]int) *models.Product {
	t.Helper()
	product := &models.Product{Name: name, PriceMinor: priceMinor, Stock: stock}
	if len(variantStocks) > 0 {
		product.Stock = 0
		for variant, qty := range variantStocks {
			product.Variants = append(product.Variants, models.ProductVariant{Name: variant, Stock: qty})
			product.Stock += qty
		}
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// SeedCart inserts a cart for userID holding items.
func SeedCart(t *testing.T, conn *gorm.DB, userID string, items ...models.CartItem) *models.Cart {
	t.Helper()
	cart := &models.Cart{UserID: userID, Items: items}
	if err := conn.Create(cart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return cart
}

// Stock reads a product's aggregate stock.
func Stock(t *testing.T, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.Stock
}

// VariantStock reads a single variant's stock.
func VariantStock(t *testing.T, conn *gorm.DB, productID uuid.UUID, variant string) int {
	t.Helper()
	var row models.ProductVariant
	if err := conn.First(&row, "product_id = ? AND name = ?", productID, variant).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return row.Stock
}

// SampleAddress is a deliverable shipping address.
func SampleAddress() types.Address {
	return types.Address{
		Name:       "Asha Rao",
		Phone:      "+919800000000",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
}

// SeedTransaction inserts a transaction for items. Totals are the plain sum of
// final unit prices; callers that care about tax set them explicitly.
func SeedTransaction(t *testing.T, conn *gorm.DB, userID string, gateway enums.PaymentGateway, status enums.TransactionStatus, items types.LineItems) *models.Transaction {
	t.Helper()
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotalMinor()
	}
	txn := &models.Transaction{
		UserID:          userID,
		Items:           items,
		ShippingAddress: SampleAddress(),
		SubtotalMinor:   subtotal,
		TotalMinor:      subtotal,
		Currency:        enums.CurrencyINR,
		Gateway:         gateway,
		Status:          status,
	}
	if err := conn.Create(txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return txn
}
