package reminders

import (
	"fmt"
	"time"

	"barberbot/internal/dialog"
	"barberbot/internal/model"
)

const reminderTemplate = "🔔 Lembrete de agendamento!\n\n" +
	"Seu horário é amanhã (%s) às %s\n" +
	"Barbeiro: %s\n" +
	"Serviço: %s\n\n" +
	"Confirma presença ou cancela?\n" +
	"Responda com SIM para confirmar ou NÃO para cancelar."

// FormatReminder renders the day-before message for an appointment. The buttons
// carry the appointment id so a reply is understood in any dialog state.
func FormatReminder(d *model.AppointmentDetail, loc *time.Location) (string, []model.Button) {
	start := d.StartAt.In(loc)
	barber, service := d.BarberName, d.ServiceName
	if barber == "" {
		barber = "Barbeiro"
	}
	if service == "" {
		service = "Serviço"
	}
	text := fmt.Sprintf(reminderTemplate, start.Format("02/01"), start.Format("15:04"), barber, service)
	return text, dialog.ReminderButtons(d.ID)
}
