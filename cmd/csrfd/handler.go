package main

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JeanGrijp/csrfchain/config"
	"github.com/JeanGrijp/csrfchain/csrf"
	"github.com/JeanGrijp/csrfchain/pipeline"
	"github.com/JeanGrijp/csrfchain/stages"
)

var formPage = template.Must(template.New("form").Parse(`<!doctype html>
<html>
<head><title>csrfd</title></head>
<body>
<form method="post" action="/transfer">
  <input type="hidden" name="{{.Field}}" value="{{.Token}}">
  <label>Amount <input name="amount" value="10"></label>
  <button type="submit">Transfer</button>
</form>
</body>
</html>
`))

// newRouter holds the demo application. Every route runs behind the
// Protector, so POST /transfer is only reached with a valid token.
func newRouter(p *csrf.Protector, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		tok, _ := csrf.TokenFromContext(r.Context())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := formPage.Execute(w, struct{ Field, Token string }{p.Config().FormField, tok}); err != nil {
			logger.ErrorContext(r.Context(), "render form",
				"err", err,
				"request_id", stages.RequestIDFromContext(r.Context()),
			)
		}
	})

	r.Post("/transfer", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	})

	r.Get("/csrf-token", p.TokenHandler().ServeHTTP)

	return r
}

// newPipeline builds the request pipeline in front of the router:
// ResponseEmitter, RequestID, Logging, Metrics, Healthz, Recover, Protector.
func newPipeline(cfg config.Config, p *csrf.Protector, logger *slog.Logger, m *stages.Collectors) *pipeline.Pipeline {
	return pipeline.New(pipeline.HTTPHandler(newRouter(p, logger)),
		pipeline.ResponseEmitter(),
		stages.RequestID(),
		stages.Logging(logger),
		stages.Metrics(m),
		stages.Healthz(cfg.Server.HealthPath),
		pipeline.Recover(logger),
		p,
	)
}

// newHandler serves the metrics endpoint directly and everything else
// through the pipeline.
func newHandler(cfg config.Config, p *csrf.Protector, logger *slog.Logger, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	if cfg.Telemetry.MetricsPath != "" {
		mux.Handle(cfg.Telemetry.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", newPipeline(cfg, p, logger, stages.NewCollectors(reg)))
	return mux
}
