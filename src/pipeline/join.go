// join.go
package pipeline

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

const enrichStage = "enrich"

// Enrich 用参照表按键做全外连接
// 左表行保留原顺序并带上参照表的非键列；两边都匹配不上的行不会被悄悄丢掉：
// 左表无匹配时参照列置缺失，参照表多出的键会追加成新行，左表列置缺失。
// 内连接会把失配行吞掉，属于正确性回归，这里始终用全外连接。
// 参照表键不唯一时报DuplicateKeyError，参照表必须由调用方预先去重。
func Enrich(left, ref dataframe.DataFrame, key string) (dataframe.DataFrame, error) {
	if left.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: bad left table: %w", enrichStage, left.Err)
	}
	if ref.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: bad reference table: %w", enrichStage, ref.Err)
	}
	if !hasColumn(left, key) {
		return dataframe.DataFrame{}, &SchemaError{Stage: enrichStage, Column: key}
	}
	if !hasColumn(ref, key) {
		return dataframe.DataFrame{}, &SchemaError{Stage: enrichStage, Column: key}
	}

	// 1. 参照表键唯一性检查
	counts := make(map[string]int)
	for _, v := range ref.Col(key).Records() {
		counts[v]++
		if counts[v] > 1 {
			return dataframe.DataFrame{}, &DuplicateKeyError{
				Stage: enrichStage, Key: key, Value: v, Count: counts[v],
			}
		}
	}

	// 2. 全外连接
	out := left.OuterJoin(ref, key)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: outer join on %q: %w", enrichStage, key, out.Err)
	}
	return out, nil
}
