// fetcher.go
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// FetchOptions CSV拉取选项
type FetchOptions struct {
	// Latin1 按ISO-8859-1解码响应体
	// 部分北欧的公开导出不是UTF-8，国家名里的å/ö会变成乱码
	Latin1 bool
}

// FetchCSV 从固定URL拉取一份CSV数据集并装载为原始表
// 单次尽力而为的拉取，不做重试；失败即中止本次报告运行
// 所有列按字符串装载，类型转换留给清洗阶段
func FetchCSV(ctx context.Context, url string, opts FetchOptions) (dataframe.DataFrame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dataframe.DataFrame{}, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	var r io.Reader = resp.Body
	if opts.Latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("parse csv from %s: %w", url, df.Err)
	}
	return df, nil
}
