package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/azel"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/httputil"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/metrics"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/track"
)

const maxBodyBytes = 64 << 10

// positionPayload is a geodetic position on the wire. Latitude and
// longitude are required; height defaults to the ellipsoid surface.
type positionPayload struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
	H   float64  `json:"h"`
}

// position converts p for the solver. A nil payload yields a nil position
// so the solver reports the missing side.
func (p *positionPayload) position(role string) (*azel.GeodeticPosition, error) {
	if p == nil {
		return nil, nil
	}
	if p.Lat == nil || p.Lon == nil {
		return nil, fmt.Errorf("%w: %s requires lat and lon", azel.ErrInvalidInput, role)
	}
	pos := &azel.GeodeticPosition{LatitudeDeg: *p.Lat, LongitudeDeg: *p.Lon, HeightM: p.H}
	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}
	return pos, nil
}

type solveRequest struct {
	Observer  *positionPayload `json:"observer"`
	Target    *positionPayload `json:"target"`
	Precision string           `json:"precision,omitempty"`
}

type lookAnglesResponse struct {
	AzimuthDeg   float64 `json:"azimuth_deg"`
	ElevationDeg float64 `json:"elevation_deg"`
	RangeM       float64 `json:"range_m"`
	Precision    string  `json:"precision"`
}

type siteResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	H   float64 `json:"h"`
}

type targetResponse struct {
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	H         float64   `json:"h"`
	UpdatedAt time.Time `json:"updated_at"`
}

type pointingResponse struct {
	Target       string    `json:"target"`
	Time         time.Time `json:"t"`
	AzimuthDeg   float64   `json:"azimuth_deg"`
	ElevationDeg float64   `json:"elevation_deg"`
	RangeM       float64   `json:"range_m"`
}

type ecefPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// targetRequest carries either a geodetic position or an ECEF one.
type targetRequest struct {
	positionPayload
	ECEF *ecefPayload `json:"ecef,omitempty"`
}

// solve runs the solver at the requested precision.
func solve(observer, target *azel.GeodeticPosition, precision string) (lookAnglesResponse, error) {
	var (
		la  azel.LookAngles
		err error
	)
	switch precision {
	case "", "float64":
		precision = "float64"
		la, err = azel.Solve(observer, target)
	case "float32":
		var la32 azel.LineOfSight[float32]
		la32, err = azel.Solve(narrow(observer), narrow(target))
		la = azel.LookAngles{
			AzimuthDeg:   float64(la32.AzimuthDeg),
			ElevationDeg: float64(la32.ElevationDeg),
			RangeM:       float64(la32.RangeM),
		}
	default:
		return lookAnglesResponse{}, fmt.Errorf("%w: precision must be float64 or float32", azel.ErrInvalidInput)
	}
	if err != nil {
		metrics.IncSolves("invalid_input")
		return lookAnglesResponse{}, err
	}
	metrics.IncSolves("ok")

	return lookAnglesResponse{
		AzimuthDeg:   la.AzimuthDeg,
		ElevationDeg: la.ElevationDeg,
		RangeM:       la.RangeM,
		Precision:    precision,
	}, nil
}

func narrow(p *azel.GeodeticPosition) *azel.Position[float32] {
	if p == nil {
		return nil
	}
	return &azel.Position[float32]{
		LatitudeDeg:  float32(p.LatitudeDeg),
		LongitudeDeg: float32(p.LongitudeDeg),
		HeightM:      float32(p.HeightM),
	}
}

// POST /api/v1/solve
func solveBodyHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req solveRequest
		if err := decodeBody(w, r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		observer, err := req.Observer.position("observer")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		target, err := req.Target.position("target")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := solve(observer, target, req.Precision)
		if err != nil {
			logger.Debug("solve rejected", "component", "api", "error", err)
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

// GET /api/v1/solve?obs_lat=&obs_lon=&obs_h=&tgt_lat=&tgt_lon=&tgt_h=&precision=
func solveQueryHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		observer, err := queryPosition(q, "obs", "observer")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		target, err := queryPosition(q, "tgt", "target")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := solve(observer, target, q.Get("precision"))
		if err != nil {
			logger.Debug("solve rejected", "component", "api", "error", err)
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

// queryPosition reads <prefix>_lat, <prefix>_lon and <prefix>_h. When
// neither lat nor lon is present the position is absent (nil).
func queryPosition(q url.Values, prefix, role string) (*azel.GeodeticPosition, error) {
	rawLat, rawLon, rawH := q.Get(prefix+"_lat"), q.Get(prefix+"_lon"), q.Get(prefix+"_h")
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}

	var p positionPayload
	for _, f := range []struct {
		key string
		raw string
		dst **float64
	}{
		{prefix + "_lat", rawLat, &p.Lat},
		{prefix + "_lon", rawLon, &p.Lon},
	} {
		if f.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number", azel.ErrInvalidInput, f.key)
		}
		*f.dst = &v
	}
	if rawH != "" {
		h, err := strconv.ParseFloat(rawH, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s_h is not a number", azel.ErrInvalidInput, prefix)
		}
		p.H = h
	}
	return p.position(role)
}

// GET /api/v1/site
func getSiteHandler(store *track.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site := store.Site()
		if site == nil {
			httputil.WriteError(w, http.StatusNotFound, "tracker site is not configured")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, siteResponse{Lat: site.LatitudeDeg, Lon: site.LongitudeDeg, H: site.HeightM})
	}
}

// PUT /api/v1/site
func putSiteHandler(logger *slog.Logger, store *track.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req positionPayload
		if err := decodeBody(w, r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		site, err := req.position("site")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		store.SetSite(*site)
		logger.Info("site updated", "component", "api",
			"lat", site.LatitudeDeg, "lon", site.LongitudeDeg, "h", site.HeightM)
		httputil.WriteJSON(w, http.StatusOK, siteResponse{Lat: site.LatitudeDeg, Lon: site.LongitudeDeg, H: site.HeightM})
	}
}

// GET /api/v1/targets
func listTargetsHandler(store *track.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targets := store.Targets()
		out := make([]targetResponse, len(targets))
		for i, t := range targets {
			out[i] = toTargetResponse(t)
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

// PUT /api/v1/targets/{name}
func putTargetHandler(logger *slog.Logger, store *track.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		var req targetRequest
		if err := decodeBody(w, r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		var (
			t   track.Target
			err error
		)
		switch {
		case req.ECEF != nil && (req.Lat != nil || req.Lon != nil):
			httputil.WriteError(w, http.StatusBadRequest, "give either lat/lon/h or ecef, not both")
			return
		case req.ECEF != nil:
			t, err = store.SetTargetECEF(name, azel.ECEF[float64]{X: req.ECEF.X, Y: req.ECEF.Y, Z: req.ECEF.Z})
		default:
			var pos *azel.GeodeticPosition
			if pos, err = req.positionPayload.position("target"); err == nil {
				t, err = store.SetTarget(name, *pos)
			}
		}
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		logger.Info("target updated", "component", "api", "target", name,
			"lat", t.Position.LatitudeDeg, "lon", t.Position.LongitudeDeg, "h", t.Position.HeightM)
		httputil.WriteJSON(w, http.StatusOK, toTargetResponse(t))
	}
}

// DELETE /api/v1/targets/{name}
func deleteTargetHandler(logger *slog.Logger, store *track.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !store.DeleteTarget(name) {
			httputil.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown target %q", name))
			return
		}
		logger.Info("target deleted", "component", "api", "target", name)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /api/v1/targets/{name}/pointing
func pointingHandler(store *track.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.Point(r.PathValue("name"))
		switch {
		case errors.Is(err, track.ErrUnknownTarget):
			httputil.WriteError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, azel.ErrNilObserver):
			httputil.WriteError(w, http.StatusConflict, "tracker site is not configured")
			return
		case err != nil:
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		httputil.WriteJSON(w, http.StatusOK, pointingResponse{
			Target:       p.Target,
			Time:         p.Time.UTC(),
			AzimuthDeg:   p.AzimuthDeg,
			ElevationDeg: p.ElevationDeg,
			RangeM:       p.RangeM,
		})
	}
}

func toTargetResponse(t track.Target) targetResponse {
	return targetResponse{
		Name:      t.Name,
		Lat:       t.Position.LatitudeDeg,
		Lon:       t.Position.LongitudeDeg,
		H:         t.Position.HeightM,
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
