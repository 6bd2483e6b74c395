package dashboard

import (
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/results"
)

const previewRows = 20

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Janggu</title></head>
<body>
<h2>Janggu</h2>
<ul>
<li><a href="/api/logs">Logs</a></li>
<li><a href="/api/comparison">Model Comparison</a></li>
<li><a href="/api/runs">Runs</a></li>
<li><a href="/metrics">Metrics</a></li>
</ul>
{{if .Models}}
<table>
<tr><th>Model name</th><th>Architecture</th></tr>
{{range .Models}}<tr><td><a href="/api/models/{{.Name}}/figures">{{.Name}}</a></td><td><img width="50%" src="/files/{{.Image}}"></td></tr>
{{end}}</table>
{{else}}
<p>The directory "{{.Root}}" appears to be empty.</p>
{{end}}
</body>
</html>
`))

func (s *Server) index() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := s.dir.Models()
		if err != nil {
			httpError(w, err, http.StatusInternalServerError)
			return
		}
		data := struct {
			Root   string
			Models []results.Model
		}{s.dir.Root(), models}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTemplate.Execute(w, data); err != nil {
			log.WithError(err).Error("Failed to render index")
		}
	}
}

func (s *Server) models() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := s.dir.Models()
		if err != nil {
			httpError(w, err, http.StatusInternalServerError)
			return
		}
		// image paths are served under /files/
		for i := range models {
			models[i].Image = "/files/" + models[i].Image
		}
		writeJSON(w, models)
	}
}

func (s *Server) figures() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		figures, err := s.dir.Figures(mux.Vars(r)["name"])
		if err != nil {
			httpError(w, err, statusFor(err))
			return
		}
		if figures == nil {
			figures = []string{}
		}
		writeJSON(w, figures)
	}
}

type tablePreview struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// table shows the first rows of an evaluation table. A table with a
// single data row is transposed into name/score pairs.
func (s *Server) table() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		path, err := s.dir.FigurePath(vars["name"], vars["file"])
		if err != nil {
			httpError(w, err, http.StatusBadRequest)
			return
		}
		header, rows, err := results.ReadRecords(path, previewRows)
		if err != nil {
			httpError(w, err, statusFor(err))
			return
		}

		preview := tablePreview{Columns: header, Rows: rows}
		if len(rows) == 1 {
			preview.Columns = []string{"name", "score"}
			preview.Rows = make([][]string, 0, len(header))
			for i, col := range header {
				if i < len(rows[0]) {
					preview.Rows = append(preview.Rows, []string{col, rows[0][i]})
				}
			}
		}
		writeJSON(w, preview)
	}
}

func (s *Server) logs() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := s.dir.Log()
		if err != nil {
			httpError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(content)
	}
}

func (s *Server) comparison() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := s.dir.Comparison()
		if err != nil {
			httpError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, tables)
	}
}

func (s *Server) runs() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := s.dir.Runs()
		if err != nil {
			httpError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, runs)
	}
}

// scatter query parameters: method (pca), x and y (component numbers,
// default 1 and 2), annotation (column used to color the points).
func (s *Server) scatter() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		table, ok := s.readTable(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		opts := scatterOptions{
			Method:     valueOr(q.Get("method"), "pca"),
			Annotation: q.Get("annotation"),
		}
		var err error
		if opts.X, err = intParam(q.Get("x"), 1); err != nil {
			httpError(w, err, http.StatusBadRequest)
			return
		}
		if opts.Y, err = intParam(q.Get("y"), 2); err != nil {
			httpError(w, err, http.StatusBadRequest)
			return
		}

		p, err := scatterPlot(table, opts)
		if err != nil {
			httpError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		if err := writeSVG(w, p); err != nil {
			log.WithError(err).Error("Failed to write plot")
		}
	}
}

// features query parameter rows: comma separated row numbers to summarize.
func (s *Server) features() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		table, ok := s.readTable(w, r)
		if !ok {
			return
		}
		var rows []int
		if list := r.URL.Query().Get("rows"); list != "" {
			for _, field := range strings.Split(list, ",") {
				row, err := strconv.Atoi(strings.TrimSpace(field))
				if err != nil {
					httpError(w, errors.Wrapf(errBadRequest, "row %q", field), http.StatusBadRequest)
					return
				}
				rows = append(rows, row)
			}
		}

		p, err := featurePlot(table, rows)
		if err != nil {
			httpError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		if err := writeSVG(w, p); err != nil {
			log.WithError(err).Error("Failed to write plot")
		}
	}
}

func (s *Server) readTable(w http.ResponseWriter, r *http.Request) (*results.Table, bool) {
	vars := mux.Vars(r)
	path, err := s.dir.FigurePath(vars["name"], vars["file"])
	if err != nil {
		httpError(w, err, http.StatusBadRequest)
		return nil, false
	}
	table, err := results.ReadTable(path)
	if err != nil {
		httpError(w, err, statusFor(err))
		return nil, false
	}
	return table, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, results.ErrUnknownModel),
		errors.Is(err, results.ErrNoLog),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func httpError(w http.ResponseWriter, err error, status int) {
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Debug("Request rejected")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, "%q is not a number", v)
	}
	return n, nil
}
