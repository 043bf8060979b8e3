package api

import (
	"html/template"
	"net/http"

	"premium-activation/internal/domain/model"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/usecase"
)

// handleLanding receives the browser back from the hosted checkout.
// The account is identified by the uid embedded in the return URL.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("uid")
	if userID == "" {
		s.renderLanding(w, http.StatusBadRequest, landingView{Title: "Payment result", Msg: "missing account reference"})
		return
	}
	raw := make(map[string]string, len(q))
	for k := range q {
		raw[k] = q.Get(k)
	}
	if r.URL.Path == s.opts.CancelPath && raw[model.ParamCancel] == "" {
		raw[model.ParamCancel] = "true"
	}

	ctx := logging.WithUserID(r.Context(), userID)
	if sid := raw[model.ParamSessionRef]; sid != "" {
		ctx = logging.WithSessID(ctx, sid)
	}
	out, err := s.deps.Listener.Deliver(ctx, userID, raw)
	if err != nil {
		s.renderLanding(w, statusFor(err), landingView{Title: "Payment result", Msg: err.Error()})
		return
	}
	s.renderLanding(w, http.StatusOK, viewFor(out))
}

type landingView struct {
	OK    bool
	Title string
	Msg   string
	State model.EngineState
}

func viewFor(out usecase.Outcome) landingView {
	v := landingView{State: out.State, Title: "Payment processed"}
	switch out.State {
	case model.StateActivated:
		v.OK, v.Title, v.Msg = true, "Premium activated", "Your premium subscription is now active."
	case model.StateActivationFailed:
		v.Title, v.Msg = "Activation failed", "Your payment was received but premium could not be activated: "+usecase.FailureReason(out.Err)+"."
	case model.StateCancelledByUser:
		v.Title, v.Msg = "Payment cancelled", "No payment was taken."
	case model.StateNeedsReauth:
		v.Title, v.Msg = "Sign in required", "Sign in again to finish activating premium."
	case model.StateReconciling:
		v.Msg = "Activation is in progress."
	default:
		v.Msg = "You can return to the app."
	}
	return v
}

var landing = template.Must(template.New("landing").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{.Title}}</h2>
  <p>{{.Msg}}</p>
  {{if .State}}<div class="small">state: {{.State}}</div>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderLanding(w http.ResponseWriter, code int, v landingView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = landing.Execute(w, v)
}
