package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	geosql "github.com/tingold/orb-geosql"
	"github.com/tingold/orb-geosql/fgb"
)

type api struct {
	store   *store
	metrics *geosql.Metrics
	log     zerolog.Logger
}

func newRouter(a *api, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/cities", a.listCities)
	r.Post("/cities", a.createCity)
	r.Get("/cities.fgb", a.exportCities)
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func (a *api) listCities(w http.ResponseWriter, r *http.Request) {
	cities, err := a.store.list(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, c := range cities {
		f := geojson.NewFeature(c.Location.Orb())
		f.ID = c.ID
		f.Properties = geojson.Properties{
			"name":       c.Name,
			"country":    c.Country,
			"population": c.Population,
			"capital":    c.Capital,
			"srid":       c.Location.SRID(),
		}
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(data)
}

type cityRequest struct {
	Name       string          `json:"name"`
	Country    string          `json:"country"`
	Population int64           `json:"population"`
	Capital    bool            `json:"capital"`
	Location   json.RawMessage `json:"location"`
}

func (a *api) createCity(w http.ResponseWriter, r *http.Request) {
	var req cityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.fail(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		a.fail(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	loc, err := geosql.UnmarshalPoint(req.Location)
	if err != nil {
		a.metrics.GeoJSONDecodeError(geosql.KindPoint)
		a.fail(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.store.insert(r.Context(), City{
		Name:       req.Name,
		Country:    req.Country,
		Population: req.Population,
		Capital:    req.Capital,
		Location:   loc,
	})
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

func (a *api) exportCities(w http.ResponseWriter, r *http.Request) {
	cities, err := a.store.list(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}

	features := make([]fgb.Feature, len(cities))
	for i, c := range cities {
		features[i] = fgb.Feature{
			Geometry: c.Location,
			Properties: map[string]any{
				"name":       c.Name,
				"country":    c.Country,
				"population": c.Population,
				"capital":    c.Capital,
			},
		}
	}

	var buf bytes.Buffer
	err = fgb.Write(&buf, features, &fgb.Options{
		Name:         "cities",
		Description:  "Major world cities",
		IncludeIndex: true,
	})
	if errors.Is(err, fgb.ErrNoFeatures) {
		a.fail(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(buf.Bytes())
}

func (a *api) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		a.log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	http.Error(w, err.Error(), status)
}
