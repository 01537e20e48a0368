package transfer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetName はエクスポート・インポートで使用するシート名。
const sheetName = "ReviewItems"

// xlsxHeader は固定のカラムレイアウト。インポートもこの並びを前提とする。
var xlsxHeader = []string{"Topic", "URL", "Category", "DateAdded", "ReviewLevel", "NextReviewDate", "IsCompleted"}

// WriteXLSX はレコード列をxlsxワークブックとして書き出す。
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("シートの作成に失敗しました: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("既定シートの削除に失敗しました: %w", err)
	}

	for col, name := range xlsxHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("ヘッダー行の書き込みに失敗しました: %w", err)
		}
	}

	for row, rec := range records {
		values := []interface{}{
			rec.Topic, rec.URL, rec.Category, rec.DateAdded,
			rec.ReviewLevel, rec.NextReviewDate, rec.IsCompleted,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("データ行の書き込みに失敗しました: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("ワークブックの書き出しに失敗しました: %w", err)
	}
	return nil
}

// ReadXLSX はxlsxワークブックからレコード列を読み取る。
// 1行目はヘッダーとして読み飛ばす。レコード単位の不備はここでは検査せず、
// Importのスキップ処理に委ねる。
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ワークブックの読み込みに失敗しました: %w", err)
	}
	defer f.Close()

	// 優先はReviewItemsシート。存在しない場合は先頭シートを使う。
	sheet := sheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("シートの読み取りに失敗しました: %w", err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 {
			continue // ヘッダー行
		}
		rec := Record{
			Topic:          cellAt(row, 0),
			URL:            cellAt(row, 1),
			Category:       cellAt(row, 2),
			DateAdded:      cellAt(row, 3),
			NextReviewDate: cellAt(row, 5),
		}
		if level, err := strconv.Atoi(cellAt(row, 4)); err == nil {
			rec.ReviewLevel = level
		}
		if completed, err := strconv.ParseBool(strings.ToLower(cellAt(row, 6))); err == nil {
			rec.IsCompleted = completed
		}
		records = append(records, rec)
	}
	return records, nil
}

// cellAt は行の指定位置のセル値を返す。短い行では空文字列になる。
func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}
