// table.go
package pipeline

import (
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 表是不可变的：每个阶段都返回新的DataFrame，绝不改写输入。

// missingMarker gota中表示缺失值的记录形式
const missingMarker = "NaN"

// hasColumn 判断DataFrame是否有某列
func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// isMissing 判断元素是否为缺失值
// 源CSV里的空串和gota的NaN统一按缺失处理
func isMissing(el series.Element) bool {
	return el.IsNA() || el.String() == ""
}

// numericValue 读取元素的数值，第二个返回值表示是否可用
func numericValue(el series.Element) (float64, bool) {
	if isMissing(el) {
		return 0, false
	}
	v := el.Float()
	if v != v { // NaN
		return 0, false
	}
	return v, true
}

// compareRecords 对两个记录值做数值优先的比较
// 分组键既可能是国家名也可能是年份，排序时先按数值比，比不了再按字符串
func compareRecords(a, b string) int {
	fa, ea := strconv.ParseFloat(a, 64)
	fb, eb := strconv.ParseFloat(b, 64)
	if ea == nil && eb == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
