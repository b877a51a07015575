package utils

import (
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/orchardhire/marketplace/models"
)

const orderNumberSuffixLength = 6
const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateUniqueOrderNumber produces a human-readable order number of the form
// OCH-YYYYMMDD-XXXXXX and retries until it does not collide with an existing
// order within the given transaction.
func GenerateUniqueOrderNumber(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	datePart := time.Now().Format("20060102")

	for {
		b := make([]byte, orderNumberSuffixLength)
		for i := range b {
			b[i] = orderNumberAlphabet[seededRand.Intn(len(orderNumberAlphabet))]
		}
		number := fmt.Sprintf("OCH-%s-%s", datePart, string(b))

		var order models.Order
		err := tx.Where("order_number = ?", number).First(&order).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return number, nil
			}
			return "", err
		}
	}
}
