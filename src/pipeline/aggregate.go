// aggregate.go
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const aggregateStage = "aggregate"

// ReduceOp 归约算子
type ReduceOp string

const (
	ReduceCount ReduceOp = "count" // 组内行数
	ReduceSum   ReduceOp = "sum"
	ReduceMax   ReduceOp = "max"
	ReduceMin   ReduceOp = "min"
	ReduceFirst ReduceOp = "first" // 组内首个非缺失值
	ReduceDelta ReduceOp = "delta" // max - min，累计值在一个周期内的"新增"
	ReduceRatio ReduceOp = "ratio" // max(Field) / max(Divisor)，分母为0时取0
)

// Reduction 一个输出统计列的定义
type Reduction struct {
	Name    string   // 输出列名
	Op      ReduceOp
	Field   string // 输入列，count时可为空
	Divisor string // 仅ratio使用：分母列

	// NullAsZero 缺失按0参与求和
	// 只用于明确是计数/标志的列，其余归约一律跳过缺失值
	NullAsZero bool
}

// AggregateOptions 聚合阶段的可选项
type AggregateOptions struct {
	// Sorted 按键值升序输出；默认保持键组合首次出现的顺序
	// 图表的图例和坐标轴对顺序敏感，顺序是显式契约的一部分
	Sorted bool
}

// Aggregate 按键列分组并计算归约
// 输出每个键组合一行；同样的输入永远得到行序、值都相同的输出
func Aggregate(df dataframe.DataFrame, keys []string, reds []Reduction, opts AggregateOptions) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: bad input table: %w", aggregateStage, df.Err)
	}
	if len(keys) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%s: no group key columns given", aggregateStage)
	}
	for _, k := range keys {
		if !hasColumn(df, k) {
			return dataframe.DataFrame{}, &GroupKeyError{Stage: aggregateStage, Column: k}
		}
	}
	for _, r := range reds {
		if r.Op != ReduceCount {
			if !hasColumn(df, r.Field) {
				return dataframe.DataFrame{}, &SchemaError{Stage: aggregateStage, Column: r.Field}
			}
		}
		if r.Op == ReduceRatio && !hasColumn(df, r.Divisor) {
			return dataframe.DataFrame{}, &SchemaError{Stage: aggregateStage, Column: r.Divisor}
		}
	}

	// 1. 分组：组合键按首次出现顺序登记
	keyRecs := make([][]string, len(keys))
	for i, k := range keys {
		keyRecs[i] = df.Col(k).Records()
	}

	var order []string
	groups := make(map[string][]int)
	parts := make(map[string][]string)
	var sb strings.Builder
	for r := 0; r < df.Nrow(); r++ {
		sb.Reset()
		for i := range keys {
			if i > 0 {
				sb.WriteByte('\x1f')
			}
			sb.WriteString(keyRecs[i][r])
		}
		ck := sb.String()
		if _, seen := groups[ck]; !seen {
			order = append(order, ck)
			p := make([]string, len(keys))
			for i := range keys {
				p[i] = keyRecs[i][r]
			}
			parts[ck] = p
		}
		groups[ck] = append(groups[ck], r)
	}

	// 2. 可选排序，默认首次出现顺序
	if opts.Sorted {
		sort.SliceStable(order, func(a, b int) bool {
			pa, pb := parts[order[a]], parts[order[b]]
			for i := range pa {
				if c := compareRecords(pa[i], pb[i]); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}

	// 3. 逐组归约
	fieldSeries := make(map[string]series.Series)
	for _, r := range reds {
		if r.Field != "" {
			fieldSeries[r.Field] = df.Col(r.Field)
		}
		if r.Divisor != "" {
			fieldSeries[r.Divisor] = df.Col(r.Divisor)
		}
	}

	out := make([][]string, len(reds))
	for i := range out {
		out[i] = make([]string, 0, len(order))
	}
	for _, ck := range order {
		rows := groups[ck]
		for i, red := range reds {
			out[i] = append(out[i], reduce(red, rows, fieldSeries))
		}
	}

	// 4. 组装输出表：键列保留原类型，统计列按算子定型
	cols := make([]series.Series, 0, len(keys)+len(reds))
	for i, k := range keys {
		vals := make([]string, 0, len(order))
		for _, ck := range order {
			vals = append(vals, parts[ck][i])
		}
		cols = append(cols, series.New(vals, df.Col(k).Type(), k))
	}
	for i, red := range reds {
		t := series.Float
		switch red.Op {
		case ReduceCount:
			t = series.Int
		case ReduceFirst:
			t = fieldSeries[red.Field].Type()
		}
		cols = append(cols, series.New(out[i], t, red.Name))
	}

	res := dataframe.New(cols...)
	if res.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: build result: %w", aggregateStage, res.Err)
	}
	return res, nil
}

// reduce 计算单个组的一个统计值，返回记录形式
func reduce(red Reduction, rows []int, fields map[string]series.Series) string {
	switch red.Op {
	case ReduceCount:
		return fmt.Sprintf("%d", len(rows))

	case ReduceSum:
		sum := 0.0
		seen := false
		s := fields[red.Field]
		for _, r := range rows {
			v, ok := numericValue(s.Elem(r))
			if !ok {
				if red.NullAsZero {
					seen = true
				}
				continue
			}
			sum += v
			seen = true
		}
		if !seen {
			return missingMarker
		}
		return formatFloat(sum)

	case ReduceMax:
		if v, ok := extremum(fields[red.Field], rows, true); ok {
			return formatFloat(v)
		}
		return missingMarker

	case ReduceMin:
		if v, ok := extremum(fields[red.Field], rows, false); ok {
			return formatFloat(v)
		}
		return missingMarker

	case ReduceFirst:
		s := fields[red.Field]
		for _, r := range rows {
			if el := s.Elem(r); !isMissing(el) {
				return el.String()
			}
		}
		return missingMarker

	case ReduceDelta:
		mx, okx := extremum(fields[red.Field], rows, true)
		mn, okn := extremum(fields[red.Field], rows, false)
		if !okx || !okn {
			return missingMarker
		}
		return formatFloat(mx - mn)

	case ReduceRatio:
		num, okn := extremum(fields[red.Field], rows, true)
		den, okd := extremum(fields[red.Divisor], rows, true)
		// 分母为0或缺失时取0而不是NaN/Inf，下游图表画不了非有限值
		if !okd || den == 0 || !okn {
			return formatFloat(0)
		}
		return formatFloat(num / den)
	}
	return missingMarker
}

// extremum 组内最大/最小值，跳过缺失
func extremum(s series.Series, rows []int, max bool) (float64, bool) {
	var best float64
	found := false
	for _, r := range rows {
		v, ok := numericValue(s.Elem(r))
		if !ok {
			continue
		}
		if !found || (max && v > best) || (!max && v < best) {
			best = v
			found = true
		}
	}
	return best, found
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
