package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/mapview"
	"github.com/sells-group/college-map/internal/model"
)

//go:embed templates/index.html
var templates embed.FS

type indexData struct {
	IncomeBuckets     []string
	PopulationBuckets []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	income, err := s.store.IncomeBuckets(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	population, err := s.store.PopulationBuckets(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := s.index.Execute(&buf, indexData{IncomeBuckets: income, PopulationBuckets: population}); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, eris.Wrap(err, "server: render index"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleColleges(w http.ResponseWriter, r *http.Request) {
	b, err := s.collegesPayload(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeRawJSON(w, b)
}

func (s *Server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	b, err := s.boundariesPayload(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeRawJSON(w, b)
}

// render runs the map pipeline for the request's filter onto a fresh scene.
func (s *Server) render(r *http.Request) (*mapview.Scene, error) {
	scene := mapview.NewScene()
	v := mapview.New(scene, scene, mapview.NewDatasets(payloadSource{s}))
	if err := v.Init(); err != nil {
		return nil, err
	}
	if _, err := v.Update(r.Context(), mapview.FilterFromQuery(r.URL.Query())); err != nil {
		return nil, err
	}
	return scene, nil
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	scene, err := s.render(r)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	b, err := json.Marshal(scene)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeRawJSON(w, b)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	scene, err := s.render(r)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	rows := scene.Rows()
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = row.Cells()
	}

	var buf bytes.Buffer
	if err := fetcher.WriteXLSX(&buf, "Colleges", mapview.Columns, cells); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="colleges.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

// payloadSource feeds the view pipeline from the cached dataset payloads.
type payloadSource struct{ s *Server }

func (p payloadSource) Colleges(ctx context.Context) ([]model.College, error) {
	return decodePayload[model.College](ctx, p.s.collegesPayload, mapview.PathColleges)
}

func (p payloadSource) Boundaries(ctx context.Context) ([]model.Boundary, error) {
	return decodePayload[model.Boundary](ctx, p.s.boundariesPayload, mapview.PathBoundaries)
}

func decodePayload[T any](ctx context.Context, get func(context.Context) ([]byte, error), endpoint string) ([]T, error) {
	b, err := get(ctx)
	if err != nil {
		return nil, &mapview.FetchError{Endpoint: endpoint, Err: err}
	}
	records, err := fetcher.CollectJSONArray[T](ctx, bytes.NewReader(b))
	if err != nil {
		return nil, &mapview.FetchError{Endpoint: endpoint, Err: err}
	}
	return records, nil
}
