package services

import (
	"bytes"
	"context"
	"html/template"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"gorm.io/gorm"

	"github.com/orchardhire/marketplace/models"
)

// GenerateOrderReceipt renders a PDF receipt for a completed order, uploads it
// and records the stored path. Runs asynchronously after completion; failures
// are logged and never affect the order itself.
func GenerateOrderReceipt(db *gorm.DB, storage Storage, order models.Order) {
	if err := db.Preload("Customer").Preload("Freelancer").Preload("Service").
		First(&order, "id = ?", order.ID).Error; err != nil {
		log.Printf("🔥 Failed to load order %s for receipt: %v", order.ID, err)
		return
	}

	htmlData, err := renderReceiptHTML(order)
	if err != nil {
		log.Printf("🔥 Failed to render receipt HTML for order %s: %v", order.OrderNumber, err)
		return
	}

	pdfBytes, err := printPDF(htmlData)
	if err != nil {
		log.Printf("🔥 Failed to generate receipt PDF for order %s: %v", order.OrderNumber, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	path, err := storage.Store(ctx, bytes.NewReader(pdfBytes), "receipts")
	if err != nil {
		log.Printf("🔥 Failed to upload receipt for order %s: %v", order.OrderNumber, err)
		return
	}

	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("receipt_path", path).Error; err != nil {
		log.Printf("🔥 Failed to record receipt path for order %s: %v", order.OrderNumber, err)
		return
	}
	log.Printf("✅ Generated receipt for order %s", order.OrderNumber)
}

func renderReceiptHTML(order models.Order) (string, error) {
	tmpl, err := template.ParseFiles("templates/receipt.html")
	if err != nil {
		return "", err
	}

	completed := time.Now()
	if order.CompletedAt != nil {
		completed = *order.CompletedAt
	}

	data := struct {
		OrderNumber    string
		CustomerName   string
		FreelancerName string
		ServiceTitle   string
		BookingDate    string
		AgreedPrice    float64
		CompletedDate  string
	}{
		OrderNumber:    order.OrderNumber,
		CustomerName:   order.Customer.FullName,
		FreelancerName: order.Freelancer.FullName,
		ServiceTitle:   order.Service.Title,
		BookingDate:    time.Time(order.BookingDate).Format("January 2, 2006"),
		AgreedPrice:    order.AgreedPrice,
		CompletedDate:  completed.Format("January 2, 2006"),
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func printPDF(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}
