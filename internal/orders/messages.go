package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/compia-store/api/internal/domain"
)

// Notification event types recognised by the notification sink.
const (
	NotificationOrderCreated   = "order_created"
	NotificationOrderStatus    = "order_status"
	NotificationOrderCancelled = "order_cancelled"
)

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount as Brazilian currency ("R$ 1.234,56").
func FormatBRL(amount decimal.Decimal) string {
	value, _ := amount.Float64()
	return brlPrinter.Sprintf("R$ %v", number.Decimal(value, number.Scale(2)))
}

// statusMessage is the customer-facing copy for a status change.
func statusMessage(orderID string, status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusProcessing:
		return fmt.Sprintf("Recebemos o pedido %s e ele está em processamento.", orderID)
	case domain.OrderStatusConfirmed:
		return fmt.Sprintf("O pedido %s foi confirmado e será preparado para envio.", orderID)
	case domain.OrderStatusShipped:
		return fmt.Sprintf("Seu pedido %s foi enviado. Em breve você receberá mais detalhes de rastreio.", orderID)
	case domain.OrderStatusCompleted:
		return fmt.Sprintf("O pedido %s foi concluído. Esperamos que você aproveite a leitura!", orderID)
	case domain.OrderStatusCanceled:
		return fmt.Sprintf("O pedido %s foi cancelado. Se tiver qualquer dúvida, entre em contato com nosso suporte.", orderID)
	default:
		return fmt.Sprintf("O status do pedido %s foi atualizado para %s.", orderID, status)
	}
}

func orderCreatedCustomerMessage(orderID string) string {
	return fmt.Sprintf("Seu pedido %s foi recebido e está em processamento.", orderID)
}

func orderCreatedAdminMessage(orderID string, total decimal.Decimal) string {
	return fmt.Sprintf("Novo pedido %s realizado com total de %s.", orderID, FormatBRL(total))
}

func cancelRequestedAdminMessage(orderID string) string {
	return fmt.Sprintf("O cliente solicitou o cancelamento do pedido %s.", orderID)
}
