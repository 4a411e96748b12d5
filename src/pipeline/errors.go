// errors.go
package pipeline

import "fmt"

// 管线错误类型定义
// 每个错误都带上阶段名和触发它的列名/键名，
// 同一套管线会套在不同的数据集模式上，配错列名是最常见的故障。

// SchemaError 所需的源列不存在
type SchemaError struct {
	Stage  string // 检测到错误的阶段
	Column string // 缺失的列名
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: required column %q not found", e.Stage, e.Column)
}

// ParseError 单元格无法转换为声明的类型
// 这类行会被上报并丢弃，不会悄悄替换成默认值
type ParseError struct {
	Stage  string
	Column string
	Row    int    // 出错时所在表的行号(0起)
	Value  string // 原始值
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: row %d column %q: cannot parse %q: %v",
		e.Stage, e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DuplicateKeyError 参照表的连接键不唯一
// 参照表必须由调用方预先去重
type DuplicateKeyError struct {
	Stage string
	Key   string // 键列名
	Value string // 重复的键值
	Count int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: key column %q has %d rows for value %q, reference table must be unique",
		e.Stage, e.Key, e.Count, e.Value)
}

// GroupKeyError 分组键列不存在
type GroupKeyError struct {
	Stage  string
	Column string
}

func (e *GroupKeyError) Error() string {
	return fmt.Sprintf("%s: group key column %q not found", e.Stage, e.Column)
}
