package dialog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"barberbot/internal/calendar"
	"barberbot/internal/model"
	"barberbot/internal/nlu"
)

// Button id prefixes understood by the handlers.
const (
	barberButtonPrefix  = "BARBER_"
	serviceButtonPrefix = "SERVICE_"
	slotButtonPrefix    = "SLOT_"
	apptButtonPrefix    = "APPT_"

	ConfirmYes = "CONFIRM_YES"
	ConfirmNo  = "CONFIRM_NO"
)

const (
	msgWelcome = "Olá! Bem-vindo à barbearia ✂️\n" +
		"Posso te ajudar a agendar, remarcar ou cancelar um horário. O que você deseja?"
	msgClarify  = "Desculpe, não entendi. Você quer agendar, remarcar ou cancelar um horário?"
	msgFollowUp = "Posso ajudar em algo mais? Você pode agendar, remarcar ou cancelar um horário."

	msgChooseBarber      = "Com qual barbeiro você quer agendar?"
	msgChooseBarberAgain = "Sem problemas! Vamos escolher de novo. Com qual barbeiro você quer agendar?"
	msgBarberNotFound    = "Não encontrei esse barbeiro. Escolha um da lista:"
	msgNoBarbers         = "No momento não há barbeiros disponíveis. Tente novamente mais tarde."

	msgChooseService   = "Ótimo, %s! Qual serviço você deseja?"
	msgServiceNotFound = "Não encontrei esse serviço. Escolha um da lista:"
	msgNoServices      = "No momento não há serviços disponíveis. Tente novamente mais tarde."

	msgAskDate     = "Para qual dia? Envie a data no formato DD/MM (ex: 25/12)."
	msgInvalidDate = "Não entendi a data. Envie no formato DD/MM, por exemplo 25/12."
	msgAskTime     = "Qual horário você prefere? (ex: 14:00 ou 14h30)"
	msgInvalidTime = "Não entendi o horário. Envie no formato HH:MM, por exemplo 14:30."
	msgNoSlots     = "Não há horários livres em %s. Por favor, escolha outro dia (DD/MM)."
	msgNearest     = "O horário %s não está livre. Estes são os mais próximos:"

	msgConfirmBooking = "Confirma o agendamento?\n\n%s"
	msgAskYesNo       = "Responda SIM para confirmar ou NÃO para voltar."
	msgBooked         = "✅ Agendamento confirmado!\n\n%s\n\nSe precisar de algo mais, é só mandar uma mensagem."

	msgNoAppointments = "Você não tem agendamentos futuros."
	msgPickCancel     = "Qual agendamento você quer cancelar?"
	msgPickRemark     = "Qual agendamento você quer remarcar?"
	msgInvalidPick    = "Escolha um dos agendamentos da lista:"
	msgConfirmCancel  = "Confirma o cancelamento deste agendamento?\n\n%s"
	msgCancelled      = "✅ Agendamento cancelado com sucesso."
	msgCancelKept     = "Tudo bem, seu agendamento foi mantido."
	msgRemarkAskDate  = "Vamos remarcar seu horário com %s (%s). Para qual dia? Envie no formato DD/MM."
	msgConfirmRemark  = "Confirma a remarcação para o novo horário?\n\n%s"
	msgRemarked       = "✅ Agendamento remarcado com sucesso!\n\n%s"
	msgRemarkKept     = "Tudo bem, mantivemos seu horário original."
	msgReminderKept   = "Obrigado! Sua presença está confirmada. Até lá! 💈"
	msgReminderGone   = "Esse agendamento não está mais ativo. Se quiser, é só pedir para agendar de novo."

	msgAborted     = "Tudo bem, operação cancelada. Se precisar, é só chamar!"
	msgLostContext = "Desculpe, me perdi na conversa. Vamos começar de novo: você quer agendar, remarcar ou cancelar?"
	msgTryAgain    = "Tivemos um problema ao processar seu pedido. Por favor, tente novamente."
	msgSlotTaken   = "Ops! Esse horário acabou de ser reservado. Por favor, tente novamente com outro horário."
	msgUnknown     = "Algo deu errado. Vamos recomeçar: você quer agendar, remarcar ou cancelar?"
)

var startButtons = []model.Button{
	{ID: "agendar", Label: "Agendar"},
	{ID: "remarcar", Label: "Remarcar"},
	{ID: "cancelar", Label: "Cancelar"},
}

var yesNoButtons = []model.Button{
	{ID: ConfirmYes, Label: "Sim"},
	{ID: ConfirmNo, Label: "Não"},
}

func barberButtons(barbers []model.Barber) []model.Button {
	out := make([]model.Button, 0, len(barbers))
	for _, b := range barbers {
		out = append(out, model.Button{ID: barberButtonPrefix + strconv.FormatInt(b.ID, 10), Label: b.Name})
	}
	return out
}

func serviceButtons(services []model.Service) []model.Button {
	out := make([]model.Button, 0, len(services))
	for _, s := range services {
		out = append(out, model.Button{ID: serviceButtonPrefix + strconv.FormatInt(s.ID, 10), Label: serviceLabel(s)})
	}
	return out
}

func serviceLabel(s model.Service) string {
	return fmt.Sprintf("%s (%dmin)", s.Name, s.DurationMinutes)
}

func slotButtons(starts []time.Time) []model.Button {
	out := make([]model.Button, 0, len(starts))
	for _, s := range starts {
		c := calendar.ClockOf(s).String()
		out = append(out, model.Button{ID: slotButtonPrefix + c, Label: c})
	}
	return out
}

func formatDate(d time.Time) string {
	return d.Format("02/01/2006")
}

func summary(barber, service string, date time.Time, slot calendar.Clock) string {
	return fmt.Sprintf("💈 Barbeiro: %s\n✂️ Serviço: %s\n📅 Data: %s\n🕒 Horário: %s",
		barber, service, formatDate(date), slot)
}

func contextSummary(c Context) string {
	slot := calendar.Clock{}
	if c.SelectedSlot != nil {
		slot = *c.SelectedSlot
	}
	return summary(c.BarberName, c.ServiceName, c.Date, slot)
}

var buttonPrefixRe = regexp.MustCompile(`^[A-Za-z]+_`)

// stripButtonPrefix turns "SLOT_14:30" into "14:30".
func stripButtonPrefix(text string) string {
	return buttonPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")
}

// buttonID extracts the numeric id of a "<prefix><id>" button.
func buttonID(text, prefix string) (int64, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(text, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

var serviceLabelSuffixRe = regexp.MustCompile(`\s*\(\d+\s*min\)$`)

// serviceNameFromLabel accepts both "Corte" and "Corte (30min)".
func serviceNameFromLabel(text string) string {
	return serviceLabelSuffixRe.ReplaceAllString(strings.TrimSpace(text), "")
}

func hasWord(text string, words ...string) bool {
	for _, w := range nlu.Words(text) {
		for _, want := range words {
			if w == want {
				return true
			}
		}
	}
	return false
}

func isNegative(text string, intent nlu.Intent) bool {
	return strings.TrimSpace(text) == ConfirmNo || hasWord(text, "não", "nao", "n") || intent == nlu.CancelAppointment
}

func isAffirmative(text string, intent nlu.Intent) bool {
	if strings.TrimSpace(text) == ConfirmYes || hasWord(text, "sim") {
		return true
	}
	return intent == nlu.BookAppointment && !isNegative(text, intent)
}
