package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/service"
)

// qrSize is the rendered image edge length in pixels.
const qrSize = 512

// Renderer produces QR payment-part images for bills.
type Renderer struct{}

// NewRenderer creates a QR payment-part renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render encodes the bill's Swiss Payment Code into a PNG attachment.
func (r *Renderer) Render(bill *model.Bill, creditor *model.Creditor, _ *model.Contact) (service.Attachment, error) {
	payload, err := BuildPayload(bill, creditor)
	if err != nil {
		return service.Attachment{}, err
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, qrSize)
	if err != nil {
		return service.Attachment{}, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return service.Attachment{
		Filename: fmt.Sprintf("bill-%s.png", bill.ReferenceNumber),
		MIMEType: "image/png",
		Content:  png,
	}, nil
}
