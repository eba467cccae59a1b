// Package api exposes the router over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/merger"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/router/metrics"
	"github.com/pg-sharding/fedrouter/router/prouter"
)

// Reserved query parameters; every other parameter is a field equality.
const (
	paramYear    = "year"
	paramFrom    = "from"
	paramTo      = "to"
	paramGroupBy = "group_by"
	paramSum     = "sum"
)

func Handler(r *prouter.Router) http.Handler {
	server := &server{
		router: r,
	}

	router := mux.NewRouter()
	metrics.Routes(router)

	router.HandleFunc("/v1/map", server.getMap).Methods("GET").Name("GetMap")
	router.HandleFunc("/v1/{dataset}/records", server.postRecord).Methods("POST").Name("PostRecord")
	router.HandleFunc("/v1/{dataset}/records", server.getRecords).Methods("GET").Name("GetRecords")
	router.HandleFunc("/v1/{dataset}/stats", server.getStats).Methods("GET").Name("GetStats")

	return router
}

type server struct {
	router *prouter.Router
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

type insertResponse struct {
	Store    string `json:"store"`
	Affected int64  `json:"affected"`
}

type rowResponse struct {
	Store  string         `json:"store"`
	Record map[string]any `json:"record"`
}

type queryResponse struct {
	QueryID  string            `json:"query_id"`
	Dataset  string            `json:"dataset"`
	Rows     []rowResponse     `json:"rows"`
	Answered []string          `json:"answered"`
	Failed   map[string]string `json:"failed,omitempty"`
}

type groupResponse struct {
	Key      any              `json:"key"`
	Count    int64            `json:"count"`
	Sum      string           `json:"sum,omitempty"`
	PerStore map[string]int64 `json:"per_store"`
}

type statsResponse struct {
	Dataset    string            `json:"dataset"`
	GroupBy    string            `json:"group_by,omitempty"`
	SumField   string            `json:"sum_field,omitempty"`
	Groups     []groupResponse   `json:"groups"`
	TotalCount int64             `json:"total_count"`
	TotalSum   string            `json:"total_sum,omitempty"`
	Answered   []string          `json:"answered"`
	Failed     map[string]string `json:"failed,omitempty"`
}

type rangeResponse struct {
	ID         string `json:"id"`
	LowerBound int64  `json:"lower_bound"`
	UpperBound int64  `json:"upper_bound"`
	Store      string `json:"store"`
}

type mapResponse struct {
	Version string          `json:"version"`
	Domain  [2]int64        `json:"domain"`
	Stores  []string        `json:"stores"`
	Ranges  []rangeResponse `json:"ranges"`
}

// statusOf maps an error code to an HTTP status.
func statusOf(err error) int {
	switch fderror.Code(err) {
	case fderror.FDR_VALIDATION, fderror.FDR_OUT_OF_RANGE:
		return http.StatusBadRequest
	case fderror.FDR_STORE_REJECTED:
		return http.StatusUnprocessableEntity
	case fderror.FDR_STORE_UNAVAILABLE:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fedlog.Zero.Error().Err(err).Msg("failed to encode http response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), &errorResponse{Code: fderror.Code(err), Message: err.Error()})
}

// partialStatus returns the status of a federated read answered with err.
func partialStatus(err error) (int, map[string]string, bool) {
	var pe *fderror.PartialFederationError
	if !errors.As(err, &pe) {
		return 0, nil, false
	}
	failed := make(map[string]string, len(pe.Failures))
	for s, ferr := range pe.Failures {
		failed[s] = ferr.Error()
	}
	if pe.AllFailed() {
		return http.StatusServiceUnavailable, failed, true
	}
	return http.StatusPartialContent, failed, true
}

// jsonValue renders a canonical value for JSON: dates as YYYY-MM-DD and
// decimals as strings so no precision is lost.
func jsonValue(ft record.FieldType, v any) any {
	if v == nil {
		return nil
	}
	switch ft {
	case record.TypeDate:
		if t, ok := v.(time.Time); ok {
			return t.Format(record.DateLayout)
		}
	case record.TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.Format(time.RFC3339)
		}
	case record.TypeInt:
		return v
	}
	return record.FormatValue(v)
}

func (s *server) filter(r *http.Request) (*prouter.Filter, error) {
	q := r.URL.Query()
	f := &prouter.Filter{Equals: map[string]any{}}
	parseKey := func(name string) (*int64, error) {
		raw := q.Get(name)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "parameter %s=%q is not an integer", name, raw)
		}
		return &v, nil
	}

	year, err := parseKey(paramYear)
	if err != nil {
		return nil, err
	}
	if year != nil {
		f.KeyFrom, f.KeyTo = year, year
	}
	if f.KeyFrom == nil {
		if f.KeyFrom, err = parseKey(paramFrom); err != nil {
			return nil, err
		}
	}
	if f.KeyTo == nil {
		if f.KeyTo, err = parseKey(paramTo); err != nil {
			return nil, err
		}
	}
	for name, vals := range q {
		switch name {
		case paramYear, paramFrom, paramTo, paramGroupBy, paramSum:
			continue
		}
		if len(vals) != 1 {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "parameter %s is given %d times", name, len(vals))
		}
		f.Equals[name] = vals[0]
	}
	return f, nil
}

// POST /v1/{dataset}/records
func (s *server) postRecord(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	defer body.Close()

	dataset := mux.Vars(r)["dataset"]
	rec := record.Record{}
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		writeError(w, fderror.Newf(fderror.FDR_VALIDATION, "decode record: %v", err))
		return
	}

	res, err := s.router.Insert(r.Context(), dataset, rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &insertResponse{Store: res.Store, Affected: res.Affected})
}

// GET /v1/{dataset}/records
func (s *server) getRecords(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]
	schema, err := s.router.Schema(dataset)
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := s.filter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rs, err := s.router.Query(r.Context(), dataset, f)
	status := http.StatusOK
	var failed map[string]string
	if err != nil {
		var ok bool
		if status, failed, ok = partialStatus(err); !ok {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, status, queryResponseOf(schema, rs, failed))
}

func queryResponseOf(schema *record.Schema, rs *merger.ResultSet, failed map[string]string) *queryResponse {
	resp := &queryResponse{
		QueryID:  rs.ID,
		Dataset:  rs.Dataset,
		Rows:     make([]rowResponse, 0, len(rs.Rows)),
		Answered: rs.Answered,
		Failed:   failed,
	}
	for _, row := range rs.Rows {
		out := make(map[string]any, len(schema.Fields))
		for _, f := range schema.Fields {
			out[f.Name] = jsonValue(f.Type, row.Record[f.Name])
		}
		resp.Rows = append(resp.Rows, rowResponse{Store: row.Store, Record: out})
	}
	return resp
}

// GET /v1/{dataset}/stats
func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]
	schema, err := s.router.Schema(dataset)
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := s.filter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	groupBy := r.URL.Query().Get(paramGroupBy)
	sumField := r.URL.Query().Get(paramSum)

	as, err := s.router.Aggregate(r.Context(), dataset, groupBy, sumField, f)
	status := http.StatusOK
	var failed map[string]string
	if err != nil {
		var ok bool
		if status, failed, ok = partialStatus(err); !ok {
			writeError(w, err)
			return
		}
	}

	var groupType record.FieldType
	if fd, ok := schema.Field(groupBy); ok {
		groupType = fd.Type
	}
	resp := &statsResponse{
		Dataset:  dataset,
		GroupBy:  groupBy,
		SumField: sumField,
		Groups:   make([]groupResponse, 0, len(as.Groups)),
		Answered: as.Answered,
		Failed:   failed,
	}
	for _, g := range as.Groups {
		gr := groupResponse{Key: jsonValue(groupType, g.Key), Count: g.Count, PerStore: g.PerStore}
		if sumField != "" {
			gr.Sum = g.Sum.String()
		}
		resp.Groups = append(resp.Groups, gr)
	}
	count, sum := as.Total()
	resp.TotalCount = count
	if sumField != "" {
		resp.TotalSum = sum.String()
	}
	writeJSON(w, status, resp)
}

// GET /v1/map
func (s *server) getMap(w http.ResponseWriter, r *http.Request) {
	pmap := s.router.PartitionMap()
	lo, hi := pmap.Domain()
	resp := &mapResponse{
		Version: pmap.Version(),
		Domain:  [2]int64{lo, hi},
		Stores:  pmap.Stores(),
	}
	for _, kr := range pmap.Ranges() {
		resp.Ranges = append(resp.Ranges, rangeResponse{
			ID:         kr.ID,
			LowerBound: kr.LowerBound,
			UpperBound: kr.UpperBound,
			Store:      kr.StoreID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
