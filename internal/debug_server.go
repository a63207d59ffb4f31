package internal

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/infrastructure/storage"
	"chat-relay/observability"
	"context"
	"embed"
	"encoding/json"
	stderrors "errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
)

//go:embed inspect.html
var templatesFS embed.FS

const auditTimeLayout = "2006-01-02 15:04:05"

var _ contract.Worker = (*DebugServer)(nil)

type InspectRow struct {
	Timestamp string
	Sender    string
	Recipient string
	Message   string
	Type      string
}

type PageData struct {
	Limit int
	Items []InspectRow
	Stats observability.Stats
}

// DebugServer exposes the live stats and, when the Badger store is enabled,
// the audit entries of the running broker.
type DebugServer struct {
	log        *slog.Logger
	listener   net.Listener
	monitoring *observability.MonitoringManager
	repository storage.IAuditRepository
	tmpl       *template.Template
}

// NewDebugServer takes a nil repository when the audit store is disabled.
func NewDebugServer(log *slog.Logger, listener net.Listener, monitoring *observability.MonitoringManager, repository storage.IAuditRepository) *DebugServer {
	return &DebugServer{
		log:        log,
		listener:   listener,
		monitoring: monitoring,
		repository: repository,
		tmpl:       template.Must(template.ParseFS(templatesFS, "inspect.html")),
	}
}

func (d *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", d.stats)
	mux.HandleFunc("/inspect", d.inspect)
	return mux
}

func (d *DebugServer) Run(ctx context.Context) error {
	srv := &http.Server{Handler: d.Handler(), ReadHeaderTimeout: 5 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	d.log.Info("Debug server listening", "address", d.listener.Addr().String())
	if err := srv.Serve(d.listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (d *DebugServer) stats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.monitoring.GetLatest())
}

func (d *DebugServer) inspect(w http.ResponseWriter, r *http.Request) {
	if d.repository == nil {
		http.Error(w, "audit store disabled, set BADGER_FILEPATH", http.StatusNotFound)
		return
	}
	data := PageData{Stats: d.monitoring.GetLatest()}

	var limit *int
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		data.Limit = n
		limit = &n
	}

	entries, err := d.repository.List(limit)
	if err != nil {
		d.log.Warn("Audit listing failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data.Items = lo.Map(entries, func(e domain.AuditEntry, _ int) InspectRow {
		return InspectRow{
			Timestamp: e.At.Format(auditTimeLayout),
			Sender:    e.Sender,
			Recipient: e.Recipient,
			Message:   e.Text,
			Type:      string(e.Type),
		}
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = d.tmpl.Execute(w, data)
}
