// writer.go 报告工作簿输出
package report

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// Table 工作簿里的一张命名表
type Table struct {
	Name string
	Data dataframe.DataFrame
}

// Tables 疫情报告的输出表清单，表名即工作表名
func (r *CovidReport) Tables() []Table {
	return []Table{
		{Name: "Monthly", Data: r.Monthly},
		{Name: "Totals", Data: r.Totals},
	}
}

// Tables 枪击报告的输出表清单
func (r *ShootingsReport) Tables() []Table {
	return []Table{
		{Name: "ByBoroughYear", Data: r.ByBoroughYear},
		{Name: "ByPrecinct", Data: r.ByPrecinct},
		{Name: "ByWeekday", Data: r.ByWeekday},
		{Name: "ByHour", Data: r.ByHour},
	}
}

// WriteWorkbook 把一组命名表写成工作簿，每张表一个工作表
// 首行是列名，缺失值留空
func WriteWorkbook(tables []Table, filePath string) error {
	if len(tables) == 0 {
		return fmt.Errorf("没有可写入的表")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, table := range tables {
		// 1. 建工作表：第一张直接改默认表名，后面的新建
		if i == 0 {
			if err := f.SetSheetName("Sheet1", table.Name); err != nil {
				return fmt.Errorf("重命名工作表 %s 失败: %w", table.Name, err)
			}
		} else {
			if _, err := f.NewSheet(table.Name); err != nil {
				return fmt.Errorf("新建工作表 %s 失败: %w", table.Name, err)
			}
		}

		// 2. 写入列名
		df := table.Data
		colNames := df.Names()
		for c, name := range colNames {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			f.SetCellValue(table.Name, cell, name)
		}

		// 3. 写入数据，缺失单元格留空
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			for colIdx, colName := range colNames {
				el := df.Col(colName).Elem(rowIdx)
				if el.IsNA() || el.String() == "" {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
				f.SetCellValue(table.Name, cell, df.Col(colName).Val(rowIdx))
			}
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存工作簿失败: %w", err)
	}
	return nil
}
