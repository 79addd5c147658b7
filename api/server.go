package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matt-g-everett/shuffler/assets"
	"github.com/matt-g-everett/shuffler/settings"
	"github.com/matt-g-everett/shuffler/stream"
)

const (
	sendTimeout  = 2 * time.Second
	writeTimeout = 5 * time.Second
	maxBody      = 1 << 20
)

// Display is one running instance.
type Display interface {
	Instance() string
	Status() stream.Status
	Settings() settings.Settings
	Send(ctx context.Context, cmd stream.Command) error
	Watch() (<-chan []byte, func())
}

// ImageSource lists and locates images.
type ImageSource interface {
	List(folder string) ([]string, error)
	Resolve(folder, file string) (string, error)
}

// PresetStore holds the custom presets.
type PresetStore interface {
	Presets() map[string]settings.Preset
	SavePreset(name string, p settings.Preset) error
}

type Api struct {
	addr     string
	static   string
	images   ImageSource
	presets  PresetStore
	displays map[string]Display
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewApi(addr, static string, images ImageSource, presets PresetStore, displays ...Display) *Api {
	a := new(Api)
	a.addr = addr
	a.static = static
	a.images = images
	a.presets = presets
	a.displays = make(map[string]Display, len(displays))
	for _, d := range displays {
		a.displays[d.Instance()] = d
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	a.routes()
	return a
}

func (a *Api) routes() {
	m := http.NewServeMux()
	m.HandleFunc("GET /api/health", a.health)
	m.HandleFunc("GET /api/images/{folder}", a.listImages)
	m.HandleFunc("GET /api/images/{folder}/{file}", a.serveImage)
	m.HandleFunc("GET /api/instances/{id}/images/{file}", a.withDisplay(a.serveInstanceImage))
	m.HandleFunc("GET /api/instances/{id}/settings", a.withDisplay(a.getSettings))
	m.HandleFunc("POST /api/instances/{id}/settings", a.withDisplay(a.postSettings))
	m.HandleFunc("GET /api/instances/{id}/status", a.withDisplay(a.getStatus))
	m.HandleFunc("POST /api/instances/{id}/queue/reset", a.withDisplay(a.command(stream.ResetQueue)))
	m.HandleFunc("POST /api/instances/{id}/assets/refresh", a.withDisplay(a.command(stream.RefreshAssets)))
	m.HandleFunc("POST /api/instances/{id}/commands", a.withDisplay(a.postCommand))
	m.HandleFunc("POST /api/instances/{id}/presets/{name}", a.withDisplay(a.loadPreset))
	m.HandleFunc("GET /api/presets", a.listPresets)
	m.HandleFunc("PUT /api/presets/{name}", a.savePreset)
	m.HandleFunc("GET /api/settings/export", a.exportSettings)
	m.HandleFunc("POST /api/settings/import", a.importSettings)
	m.HandleFunc("GET /ws/{id}", a.withDisplay(a.watch))
	if a.static != "" {
		m.Handle("/", http.FileServer(http.Dir(a.static)))
	}
	a.mux = m
}

// Handler exposes the routes, mainly for tests.
func (a *Api) Handler() http.Handler {
	return a.mux
}

// Serve listens until ctx is cancelled.
func (a *Api) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: a.addr, Handler: a.mux}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Printf("Listening on %s...", a.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type displayHandler func(w http.ResponseWriter, r *http.Request, d Display)

func (a *Api) withDisplay(h displayHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := a.displays[r.PathValue("id")]
		if !ok {
			writeError(w, http.StatusNotFound, "Unknown instance")
			return
		}
		h(w, r, d)
	}
}

func (a *Api) send(w http.ResponseWriter, r *http.Request, d Display, cmds ...stream.Command) {
	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()

	for _, cmd := range cmds {
		if err := d.Send(ctx, cmd); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				writeError(w, http.StatusServiceUnavailable, "Instance busy")
			} else {
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *Api) health(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0, len(a.displays))
	for id := range a.displays {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"instances": ids,
	})
}

func (a *Api) listImages(w http.ResponseWriter, r *http.Request) {
	names, err := a.images.List(r.PathValue("folder"))
	if errors.Is(err, assets.ErrForbidden) {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}
	if err != nil {
		log.Printf("Error reading images directory: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read images directory")
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (a *Api) serveFile(w http.ResponseWriter, r *http.Request, folder, file string) {
	path, err := a.images.Resolve(folder, file)
	switch {
	case errors.Is(err, assets.ErrForbidden):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, assets.ErrNotFound):
		writeError(w, http.StatusNotFound, "Image not found")
	case err != nil:
		log.Printf("Error serving image: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to serve image")
	default:
		w.Header().Set("Cache-Control", "public, max-age=300")
		http.ServeFile(w, r, path)
	}
}

func (a *Api) serveImage(w http.ResponseWriter, r *http.Request) {
	a.serveFile(w, r, r.PathValue("folder"), r.PathValue("file"))
}

func (a *Api) serveInstanceImage(w http.ResponseWriter, r *http.Request, d Display) {
	a.serveFile(w, r, d.Settings().ImagesFolder, r.PathValue("file"))
}

func (a *Api) getSettings(w http.ResponseWriter, r *http.Request, d Display) {
	writeJSON(w, http.StatusOK, d.Settings())
}

// postSettings accepts either a JSON partial or form parameters using the
// short names. A preset parameter is applied before the other parameters.
func (a *Api) postSettings(w http.ResponseWriter, r *http.Request, d Display) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil || !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "Invalid settings")
			return
		}
		a.send(w, r, d, stream.Command{Type: stream.ApplySettings, Settings: body})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cmds []stream.Command
	if name := r.Form.Get("preset"); name != "" {
		cmds = append(cmds, stream.Command{Type: stream.LoadPreset, Preset: name})
	}
	patch, err := d.Settings().ParamsPatch(r.Form)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch != nil {
		cmds = append(cmds, stream.Command{Type: stream.ApplySettings, Settings: patch})
	}
	if len(cmds) == 0 {
		writeError(w, http.StatusBadRequest, "No settings given")
		return
	}
	a.send(w, r, d, cmds...)
}

func (a *Api) getStatus(w http.ResponseWriter, r *http.Request, d Display) {
	writeJSON(w, http.StatusOK, d.Status())
}

func (a *Api) command(t stream.CommandType) displayHandler {
	return func(w http.ResponseWriter, r *http.Request, d Display) {
		a.send(w, r, d, stream.Command{Type: t})
	}
}

func (a *Api) postCommand(w http.ResponseWriter, r *http.Request, d Display) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd, err := stream.ParseCommand(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.send(w, r, d, cmd)
}

func (a *Api) loadPreset(w http.ResponseWriter, r *http.Request, d Display) {
	name := r.PathValue("name")
	if _, err := settings.Lookup(a.presets.Presets(), name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	a.send(w, r, d, stream.Command{Type: stream.LoadPreset, Preset: name})
}

func (a *Api) listPresets(w http.ResponseWriter, r *http.Request) {
	custom := a.presets.Presets()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets": settings.Names(custom),
		"builtin": settings.BuiltinNames(),
	})
}

// savePreset stores the JSON body as a custom preset, or with ?from=<id> the
// current settings of that instance.
func (a *Api) savePreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var preset settings.Preset
	if from := r.URL.Query().Get("from"); from != "" {
		d, ok := a.displays[from]
		if !ok {
			writeError(w, http.StatusNotFound, "Unknown instance")
			return
		}
		p, err := settings.PresetFrom(d.Settings())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		preset = p
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil || !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "Invalid preset")
			return
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(body, &probe); err != nil {
			writeError(w, http.StatusBadRequest, "Preset must be an object")
			return
		}
		preset = settings.Preset(body)
	}

	if err := a.presets.SavePreset(name, preset); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"saved": settings.PresetName(name)})
}

func (a *Api) exportSettings(w http.ResponseWriter, r *http.Request) {
	all := make(map[string]settings.Settings, len(a.displays))
	for id, d := range a.displays {
		all[id] = d.Settings()
	}
	data, err := settings.Export(all)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="shuffler-settings.json"`)
	w.Write(data)
}

func (a *Api) importSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bundle, err := settings.Import(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()

	imported := []string{}
	for id, partial := range bundle {
		d, ok := a.displays[id]
		if !ok {
			continue
		}
		if err := d.Send(ctx, stream.Command{Type: stream.ApplySettings, Settings: partial}); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		imported = append(imported, id)
	}
	sort.Strings(imported)
	writeJSON(w, http.StatusOK, map[string]interface{}{"imported": imported})
}

// watch streams binary frames to a websocket until either side goes away.
func (a *Api) watch(w http.ResponseWriter, r *http.Request, d Display) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	frames, unwatch := d.Watch()
	defer unwatch()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	}
}
