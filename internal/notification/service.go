package notification

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/knowwell/portal-api/internal/model"
)

// Config holds the SMTP settings and the dashboard inbox that receives
// request notifications.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	DoctorInbox string
}

// Service sends the portal's notification emails.
type Service struct {
	dialer *gomail.Dialer
	cfg    Config
}

func NewService(cfg Config) *Service {
	return &Service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg:    cfg,
	}
}

// SendRequestCreated notifies the doctor inbox that a patient asked for a
// higher knowledge level.
func (s *Service) SendRequestCreated(ev *model.RequestEvent) error {
	subject := fmt.Sprintf("KnowWell: new knowledge-level request from %s", ev.PatientCode)
	body := fmt.Sprintf(
		"Patient %s requested %s access for %s.\n\nReview it in the requests dashboard.",
		ev.PatientCode, ev.RequestedLevel.Title(), ev.MedicationName,
	)
	return s.send(s.cfg.DoctorInbox, subject, body)
}

// SendRequestResolved notifies the patient's contact address of the
// doctor's decision. A patient without a contact address is skipped.
func (s *Service) SendRequestResolved(ev *model.RequestEvent, approved bool, contactEmail string) error {
	if contactEmail == "" {
		return nil
	}

	outcome := "denied"
	if approved {
		outcome = "approved"
	}
	subject := fmt.Sprintf("KnowWell: your request for %s was %s", ev.MedicationName, outcome)
	body := fmt.Sprintf(
		"Your request for %s access to %s was %s.\n\nDoctor's note: %s",
		ev.RequestedLevel.Title(), ev.MedicationName, outcome, ev.Message,
	)
	return s.send(contactEmail, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
