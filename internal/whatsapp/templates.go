package whatsapp

import "fmt"

// Шаблоны WhatsApp сообщений. Тексты на испанском: платформа работает
// с клиентами из Парагвая и Аргентины.

// StageAvailable - этап оплаты разблокирован прогрессом проекта.
func StageAvailable(projectName, stageName string, amount float64) string {
	return fmt.Sprintf(
		"🔓 *SoftwarePar*\nEl pago de la etapa *%s* del proyecto *%s* ya está disponible.\nMonto: $%.2f\nIngresá a tu panel para generar el link de pago.",
		stageName, projectName, amount,
	)
}

// PaymentReceived - оплата этапа подтверждена.
func PaymentReceived(projectName, stageName string, amount float64) string {
	return fmt.Sprintf(
		"✅ *SoftwarePar*\nRecibimos el pago de la etapa *%s* del proyecto *%s*.\nMonto: $%.2f\n¡Gracias!",
		stageName, projectName, amount,
	)
}

// BudgetProposal - поступило предложение цены.
func BudgetProposal(projectName string, proposedPrice float64) string {
	return fmt.Sprintf(
		"💬 *SoftwarePar*\nHay una nueva propuesta de presupuesto para el proyecto *%s*: $%.2f.\nRespondé desde tu panel.",
		projectName, proposedPrice,
	)
}

// BudgetResolved - переговоры завершены.
func BudgetResolved(projectName, decision string, price float64) string {
	return fmt.Sprintf(
		"💬 *SoftwarePar*\nLa negociación del proyecto *%s* fue %s. Precio: $%.2f.",
		projectName, decision, price,
	)
}

// ProjectProgress - обновился прогресс проекта.
func ProjectProgress(projectName string, progress int) string {
	return fmt.Sprintf(
		"📈 *SoftwarePar*\nEl proyecto *%s* avanzó al %d%% de progreso.",
		projectName, progress,
	)
}
