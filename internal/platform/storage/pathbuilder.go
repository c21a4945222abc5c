package storage

import (
	"fmt"
	"strings"
	"time"
)

const defaultExtension = "png"

// ProofObjectPath composes the object key for a remittance proof image.
// Layout: orders/<orderID>/proof-<unix millis>.<ext>.
func ProofObjectPath(orderID, fileName string, now time.Time) (string, error) {
	id, err := validateSegment("orderID", orderID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("orders/%s/proof-%d.%s", id, now.UnixMilli(), fileExtension(fileName)), nil
}

// ProductImagePath composes the object key for the n-th image of a product.
// Layout: products/<productID>/<unix millis>_<index>.<ext>.
func ProductImagePath(productID, fileName string, index int, now time.Time) (string, error) {
	id, err := validateSegment("productID", productID)
	if err != nil {
		return "", err
	}
	if index < 0 {
		return "", fmt.Errorf("storage: image index must not be negative")
	}
	return fmt.Sprintf("products/%s/%d_%d.%s", id, now.UnixMilli(), index, fileExtension(fileName)), nil
}

func fileExtension(fileName string) string {
	name := strings.TrimSpace(fileName)
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return strings.ToLower(name[idx+1:])
	}
	return defaultExtension
}

func validateSegment(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", field)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s must not contain path separators", field)
	}
	return value, nil
}
