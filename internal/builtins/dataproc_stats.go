// ABOUTME: Numeric operations for the dataproc tool: descriptive statistics,
// ABOUTME: correlation, moving averages, outliers, transforms, and pivots.

package builtins

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

func analyzeData(params json.RawMessage) (any, error) {
	var in struct {
		Data       []float64 `json:"data"`
		Type       string    `json:"type"`
		X          []float64 `json:"x"`
		Y          []float64 `json:"y"`
		Window     int       `json:"window"`
		Multiplier float64   `json:"multiplier"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = "describe"
	}

	switch in.Type {
	case "describe":
		return describe(in.Data), nil
	case "correlation":
		return map[string]any{"correlation": correlation(in.X, in.Y)}, nil
	case "moving_average":
		window := in.Window
		if window == 0 {
			window = 3
		}
		return map[string]any{"moving_average": movingAverage(in.Data, window)}, nil
	case "outliers":
		multiplier := in.Multiplier
		if multiplier == 0 {
			multiplier = 1.5
		}
		return outliersIQR(in.Data, multiplier), nil
	default:
		return nil, fmt.Errorf("unknown analysis type: %s", in.Type)
	}
}

func transformData(params json.RawMessage) (any, error) {
	var in struct {
		Data []float64 `json:"data"`
		Type string    `json:"type"`
		Base float64   `json:"base"`
		Bins int       `json:"bins"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = "normalize"
	}

	switch in.Type {
	case "normalize":
		return map[string]any{"normalized": normalizeMinMax(in.Data, 0, 1)}, nil
	case "zscore":
		return map[string]any{"standardized": normalizeZScore(in.Data)}, nil
	case "log":
		base := in.Base
		if base == 0 {
			base = math.E
		}
		return map[string]any{"log_transformed": logTransform(in.Data, base)}, nil
	case "bin":
		bins := in.Bins
		if bins == 0 {
			bins = 10
		}
		return binData(in.Data, bins)
	default:
		return nil, fmt.Errorf("unknown transform type: %s", in.Type)
	}
}

// aggregateData runs a simple aggregation over a numeric list, or a pivot
// table when the data is a list of objects.
func aggregateData(params json.RawMessage) (any, error) {
	var objects struct {
		Data    []map[string]any `json:"data"`
		Index   string           `json:"index"`
		Columns string           `json:"columns"`
		Values  string           `json:"values"`
		AggFunc string           `json:"aggfunc"`
	}
	if err := json.Unmarshal(params, &objects); err == nil && len(objects.Data) > 0 {
		aggfunc := objects.AggFunc
		if aggfunc == "" {
			aggfunc = "sum"
		}
		return pivotTable(objects.Data, objects.Index, objects.Columns, objects.Values, aggfunc)
	}

	var numeric struct {
		Data []float64 `json:"data"`
	}
	if err := json.Unmarshal(params, &numeric); err != nil {
		return nil, err
	}
	return describe(numeric.Data), nil
}

// describe computes descriptive statistics: count, sum, mean, median, min,
// max, range, quartiles, and (for n > 1) variance, stddev, and stderr.
func describe(data []float64) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}

	n := len(data)
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(n)
	min, max := sorted[0], sorted[n-1]

	out := map[string]any{
		"count":  n,
		"sum":    sum,
		"mean":   mean,
		"median": medianOf(sorted),
		"min":    min,
		"max":    max,
		"range":  max - min,
	}

	var stddev float64
	if n > 1 {
		variance := sampleVariance(data, mean)
		stddev = math.Sqrt(variance)
		out["variance"] = variance
		out["stddev"] = stddev
		out["stderr"] = stddev / math.Sqrt(float64(n))
	}

	// Quartiles need a non-empty half on each side of the median.
	if n >= 2 {
		q1 := medianOf(sorted[:n/2])
		q3 := medianOf(sorted[(n+1)/2:])
		out["q1"] = q1
		out["q3"] = q3
		out["iqr"] = q3 - q1
	}

	// Pearson's second skewness coefficient.
	if stddev > 0 {
		out["skewness"] = 3 * (mean - medianOf(sorted)) / stddev
	}
	return out
}

// medianOf expects sorted input.
func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sampleVariance(data []float64, mean float64) float64 {
	if len(data) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(data)-1)
}

// correlation returns the Pearson coefficient, or nil when undefined.
func correlation(x, y []float64) *float64 {
	if len(x) != len(y) || len(x) < 2 {
		return nil
	}

	n := float64(len(x))
	meanX, meanY := 0.0, 0.0
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= n
	meanY /= n

	var num, denX, denY float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	if denX == 0 || denY == 0 {
		return nil
	}
	r := num / (math.Sqrt(denX) * math.Sqrt(denY))
	return &r
}

func movingAverage(data []float64, window int) []float64 {
	if window <= 0 || window > len(data) {
		return []float64{}
	}
	out := make([]float64, 0, len(data)-window+1)
	for i := 0; i+window <= len(data); i++ {
		sum := 0.0
		for _, v := range data[i : i+window] {
			sum += v
		}
		out = append(out, sum/float64(window))
	}
	return out
}

func outliersIQR(data []float64, multiplier float64) map[string]any {
	if len(data) < 4 {
		return map[string]any{"outliers": []float64{}, "lower_bound": nil, "upper_bound": nil}
	}

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	n := len(sorted)
	q1 := medianOf(sorted[:n/2])
	q3 := medianOf(sorted[(n+1)/2:])
	iqr := q3 - q1

	lower := q1 - multiplier*iqr
	upper := q3 + multiplier*iqr

	outliers := []float64{}
	for _, v := range data {
		if v < lower || v > upper {
			outliers = append(outliers, v)
		}
	}

	return map[string]any{
		"outliers":      outliers,
		"outlier_count": len(outliers),
		"lower_bound":   lower,
		"upper_bound":   upper,
		"q1":            q1,
		"q3":            q3,
		"iqr":           iqr,
	}
}

func normalizeMinMax(data []float64, targetMin, targetMax float64) []float64 {
	if len(data) == 0 {
		return []float64{}
	}

	min, max := data[0], data[0]
	for _, v := range data {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}

	out := make([]float64, len(data))
	if min == max {
		for i := range out {
			out[i] = targetMin
		}
		return out
	}
	scale := (targetMax - targetMin) / (max - min)
	for i, v := range data {
		out[i] = targetMin + (v-min)*scale
	}
	return out
}

func normalizeZScore(data []float64) []float64 {
	if len(data) < 2 {
		return data
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	stddev := math.Sqrt(sampleVariance(data, mean))

	out := make([]float64, len(data))
	if stddev == 0 {
		return out
	}
	for i, v := range data {
		out[i] = (v - mean) / stddev
	}
	return out
}

// logTransform maps non-positive values to null rather than failing the
// whole series.
func logTransform(data []float64, base float64) []*float64 {
	logBase := math.Log(base)
	out := make([]*float64, len(data))
	for i, v := range data {
		if v <= 0 {
			continue
		}
		lv := math.Log(v) / logBase
		out[i] = &lv
	}
	return out
}

func binData(data []float64, bins int) (map[string]any, error) {
	if len(data) == 0 || bins <= 0 {
		return map[string]any{}, nil
	}

	min, max := data[0], data[0]
	for _, v := range data {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if min == max {
		return nil, errors.New("cannot bin constant data")
	}

	width := (max - min) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = min + float64(i)*width
	}

	counts := make([]int, bins)
	for _, v := range data {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	return map[string]any{
		"bins":   bins,
		"edges":  edges,
		"counts": counts,
		"width":  width,
	}, nil
}

func pivotTable(data []map[string]any, index, columns, values, aggfunc string) (map[string]map[string]float64, error) {
	if index == "" || columns == "" || values == "" {
		return nil, errors.New("pivot requires index, columns, and values fields")
	}

	groups := make(map[string]map[string][]float64)
	for _, row := range data {
		idx, ok1 := row[index].(string)
		col, ok2 := row[columns].(string)
		val, ok3 := row[values].(float64)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		if groups[idx] == nil {
			groups[idx] = make(map[string][]float64)
		}
		groups[idx][col] = append(groups[idx][col], val)
	}

	out := make(map[string]map[string]float64, len(groups))
	for idx, cols := range groups {
		out[idx] = make(map[string]float64, len(cols))
		for col, vals := range cols {
			out[idx][col] = aggregate(vals, aggfunc)
		}
	}
	return out, nil
}

// aggregate folds a group's values. An unrecognized function name falls back
// to sum.
func aggregate(vals []float64, fn string) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}

	switch fn {
	case "mean":
		return sum / float64(len(vals))
	case "median":
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		return medianOf(sorted)
	case "min":
		min := vals[0]
		for _, v := range vals {
			min = math.Min(min, v)
		}
		return min
	case "max":
		max := vals[0]
		for _, v := range vals {
			max = math.Max(max, v)
		}
		return max
	case "variance":
		return sampleVariance(vals, sum/float64(len(vals)))
	case "stddev":
		return math.Sqrt(sampleVariance(vals, sum/float64(len(vals))))
	case "count":
		return float64(len(vals))
	case "distinct":
		seen := make(map[float64]struct{}, len(vals))
		for _, v := range vals {
			seen[v] = struct{}{}
		}
		return float64(len(seen))
	default:
		return sum
	}
}
