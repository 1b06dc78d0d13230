package webhookcontrollers

import (
	"net/http"

	"github.com/jmcarrillo/fogata-backend/api/responses"
	"github.com/jmcarrillo/fogata-backend/api/validators"
	paymentswebhook "github.com/jmcarrillo/fogata-backend/internal/webhooks/payments"
	pkgerrors "github.com/jmcarrillo/fogata-backend/pkg/errors"
	"github.com/jmcarrillo/fogata-backend/pkg/logger"
)

// PaymentsWebhook receives payment gateway deliveries. The gateway retries on
// non-2xx, so only genuinely retryable failures surface as errors here.
func PaymentsWebhook(svc *paymentswebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments webhook service unavailable"))
			return
		}

		var event paymentswebhook.PaymentEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.HandleEvent(r.Context(), event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
