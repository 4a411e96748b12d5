// normalize.go
package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const normalizeStage = "normalize"

// NormalizeSpec 列规整阶段的全部配置
// 同一个实现套在两种数据集模式上，列名全部由调用方给出
type NormalizeSpec struct {
	// Keep 保留的列(按重命名前的名字)，输出列顺序与此一致
	Keep []string

	// KeepPattern 额外保留所有列名匹配该正则的列(宽表的日期列)
	KeepPattern string

	// Rename 旧列名 → 新列名，在Keep之后应用
	Rename map[string]string

	// AllowList 列 → 允许的取值，行级过滤(按重命名后的名字)
	AllowList map[string][]string

	// ExcludeNonEmpty 这些列非空的行会被整行剔除
	// 用来排除"子区域"行：国家级行的省/州列为空
	// 列在剔除后不必出现在Keep里
	ExcludeNonEmpty []string

	// MissingValues 列 → 映射为缺失的哨兵值(如 "(null)"、"UNKNOWN")
	MissingValues map[string][]string

	// DateColumns 列 → 时间布局，按固定格式解析并统一为 2006-01-02
	// 解析失败的行上报ParseError并丢弃
	DateColumns map[string]string

	// IntColumns / FloatColumns / BoolColumns 数值类型转换
	// 非缺失但无法转换的行同样上报并丢弃
	IntColumns   []string
	FloatColumns []string
	BoolColumns  []string
}

// Normalize 把原始表清洗成固定模式的表
// 返回清洗后的表、被丢弃行的解析错误清单和硬错误
// 原始表不会被修改
func Normalize(df dataframe.DataFrame, spec NormalizeSpec) (dataframe.DataFrame, []*ParseError, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("%s: bad input table: %w", normalizeStage, df.Err)
	}

	// 1. 校验所有引用到的源列都存在
	for _, c := range spec.Keep {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, nil, &SchemaError{Stage: normalizeStage, Column: c}
		}
	}
	for _, c := range spec.ExcludeNonEmpty {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, nil, &SchemaError{Stage: normalizeStage, Column: c}
		}
	}

	// 2. 行级剔除：子区域行
	for _, c := range spec.ExcludeNonEmpty {
		df = df.Filter(dataframe.F{
			Colname:    c,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool { return isMissing(el) },
		})
		if df.Err != nil {
			return dataframe.DataFrame{}, nil, fmt.Errorf("%s: exclude on %q: %w", normalizeStage, c, df.Err)
		}
	}

	// 3. 列裁剪：Keep + 正则匹配的列
	keep := append([]string{}, spec.Keep...)
	if spec.KeepPattern != "" {
		re, err := regexp.Compile(spec.KeepPattern)
		if err != nil {
			return dataframe.DataFrame{}, nil, fmt.Errorf("%s: bad keep pattern: %w", normalizeStage, err)
		}
		kept := make(map[string]bool, len(keep))
		for _, c := range keep {
			kept[c] = true
		}
		for _, c := range df.Names() {
			if !kept[c] && re.MatchString(c) {
				keep = append(keep, c)
			}
		}
	}
	df = df.Select(keep)
	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("%s: select: %w", normalizeStage, df.Err)
	}

	// 4. 重命名
	for old, to := range spec.Rename {
		if !hasColumn(df, old) {
			return dataframe.DataFrame{}, nil, &SchemaError{Stage: normalizeStage, Column: old}
		}
		df = df.Rename(to, old)
		if df.Err != nil {
			return dataframe.DataFrame{}, nil, fmt.Errorf("%s: rename %q: %w", normalizeStage, old, df.Err)
		}
	}

	// 5. 实体白名单过滤
	for c, allowed := range spec.AllowList {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, nil, &SchemaError{Stage: normalizeStage, Column: c}
		}
		df = df.Filter(dataframe.F{Colname: c, Comparator: series.In, Comparando: allowed})
		if df.Err != nil {
			return dataframe.DataFrame{}, nil, fmt.Errorf("%s: allow-list on %q: %w", normalizeStage, c, df.Err)
		}
	}

	// 6. 哨兵值 → 缺失
	for c, sentinels := range spec.MissingValues {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, nil, &SchemaError{Stage: normalizeStage, Column: c}
		}
		bad := make(map[string]bool, len(sentinels))
		for _, s := range sentinels {
			bad[s] = true
		}
		recs := df.Col(c).Records()
		for i, r := range recs {
			if bad[r] {
				recs[i] = missingMarker
			}
		}
		df = df.Mutate(series.New(recs, series.String, c))
	}

	// 7. 类型转换，失败的行收集后统一丢弃
	var issues []*ParseError
	dropRows := make(map[int]bool)

	for c, layout := range spec.DateColumns {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, nil, &SchemaError{Stage: normalizeStage, Column: c}
		}
		recs := df.Col(c).Records()
		for i, r := range recs {
			if r == "" || r == missingMarker {
				recs[i] = missingMarker
				continue
			}
			t, err := time.Parse(layout, r)
			if err != nil {
				issues = append(issues, &ParseError{
					Stage: normalizeStage, Column: c, Row: i, Value: r, Err: err,
				})
				dropRows[i] = true
				continue
			}
			recs[i] = t.Format("2006-01-02")
		}
		df = df.Mutate(series.New(recs, series.String, c))
	}

	coerce := func(cols []string, t series.Type, check func(string) error) error {
		for _, c := range cols {
			if !hasColumn(df, c) {
				return &SchemaError{Stage: normalizeStage, Column: c}
			}
			recs := df.Col(c).Records()
			for i, r := range recs {
				if r == "" || r == missingMarker {
					recs[i] = missingMarker
					continue
				}
				if err := check(r); err != nil {
					issues = append(issues, &ParseError{
						Stage: normalizeStage, Column: c, Row: i, Value: r, Err: err,
					})
					dropRows[i] = true
				}
			}
			df = df.Mutate(series.New(recs, t, c))
		}
		return nil
	}

	if err := coerce(spec.IntColumns, series.Int, func(r string) error {
		_, err := strconv.Atoi(r)
		return err
	}); err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	if err := coerce(spec.FloatColumns, series.Float, func(r string) error {
		_, err := strconv.ParseFloat(r, 64)
		return err
	}); err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	// 布尔列先统一成 true/false 再建列，避免依赖gota对大小写的宽容度
	for _, c := range spec.BoolColumns {
		if !hasColumn(df, c) {
			return dataframe.DataFrame{}, nil, &SchemaError{Stage: normalizeStage, Column: c}
		}
		recs := df.Col(c).Records()
		for i, r := range recs {
			switch r {
			case "", missingMarker:
				recs[i] = missingMarker
			case "true", "TRUE", "True", "t", "T", "1":
				recs[i] = "true"
			case "false", "FALSE", "False", "f", "F", "0":
				recs[i] = "false"
			default:
				issues = append(issues, &ParseError{
					Stage: normalizeStage, Column: c, Row: i, Value: r,
					Err: fmt.Errorf("not a boolean"),
				})
				dropRows[i] = true
				recs[i] = missingMarker
			}
		}
		df = df.Mutate(series.New(recs, series.Bool, c))
	}

	// 8. 丢弃解析失败的行
	if len(dropRows) > 0 {
		kept := make([]int, 0, df.Nrow()-len(dropRows))
		for i := 0; i < df.Nrow(); i++ {
			if !dropRows[i] {
				kept = append(kept, i)
			}
		}
		df = df.Subset(kept)
		if df.Err != nil {
			return dataframe.DataFrame{}, nil, fmt.Errorf("%s: drop bad rows: %w", normalizeStage, df.Err)
		}
	}

	return df, issues, nil
}
