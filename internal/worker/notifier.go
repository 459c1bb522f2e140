package worker

import (
	"context"
	"encoding/json"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/notification"
	"github.com/knowwell/portal-api/internal/repository"
	"github.com/knowwell/portal-api/pkg/logger"
	"github.com/knowwell/portal-api/pkg/messaging"
)

// Notifier turns request events from the broker into emails: new requests
// go to the doctor inbox, resolutions to the patient's contact address.
type Notifier struct {
	broker      messaging.Broker
	notifier    *notification.Service
	patientRepo repository.PatientRepository
	logger      *logger.Logger
}

func NewNotifier(
	broker messaging.Broker,
	notifier *notification.Service,
	patientRepo repository.PatientRepository,
	logger *logger.Logger,
) *Notifier {
	return &Notifier{
		broker:      broker,
		notifier:    notifier,
		patientRepo: patientRepo,
		logger:      logger,
	}
}

// Start subscribes to the request channels and blocks until ctx is done.
func (n *Notifier) Start(ctx context.Context) error {
	created, err := n.broker.Subscribe(ctx, messaging.ChannelRequestCreated)
	if err != nil {
		return err
	}
	approved, err := n.broker.Subscribe(ctx, messaging.ChannelRequestApproved)
	if err != nil {
		return err
	}
	denied, err := n.broker.Subscribe(ctx, messaging.ChannelRequestDenied)
	if err != nil {
		return err
	}

	n.logger.Info("notifier started")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("shutting down notifier")
			return nil
		case payload := <-created:
			n.handle(ctx, payload, func(ev *model.RequestEvent) error {
				return n.notifier.SendRequestCreated(ev)
			})
		case payload := <-approved:
			n.handle(ctx, payload, func(ev *model.RequestEvent) error {
				return n.notifyPatient(ctx, ev, true)
			})
		case payload := <-denied:
			n.handle(ctx, payload, func(ev *model.RequestEvent) error {
				return n.notifyPatient(ctx, ev, false)
			})
		}
	}
}

func (n *Notifier) handle(ctx context.Context, payload []byte, send func(*model.RequestEvent) error) {
	var ev model.RequestEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		n.logger.Error(err, "failed to decode request event")
		return
	}
	if err := send(&ev); err != nil {
		n.logger.Error(err, "failed to send notification",
			"patient_code", ev.PatientCode, "medication", ev.MedicationName)
	}
}

func (n *Notifier) notifyPatient(ctx context.Context, ev *model.RequestEvent, approved bool) error {
	patient, err := n.patientRepo.Get(ctx, ev.PatientID)
	if err != nil {
		return err
	}
	return n.notifier.SendRequestResolved(ev, approved, patient.ContactEmail)
}
