package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/maheshrc27/travelpost-bot/internal/models"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	newSheetRows = 100
	valueInput   = "RAW"
)

// SheetsWorksheet is a Worksheet backed by one tab of a Google spreadsheet.
type SheetsWorksheet struct {
	srv           *sheets.Service
	spreadsheetID string
	title         string
	sheetID       int64
}

// NewSheetsService builds a Sheets API client from a service account key.
// credentials is either a path to the JSON key file or the JSON itself.
func NewSheetsService(ctx context.Context, credentials string) (*sheets.Service, error) {
	data := []byte(credentials)
	if !strings.HasPrefix(strings.TrimSpace(credentials), "{") {
		var err error
		data, err = os.ReadFile(credentials)
		if err != nil {
			return nil, fmt.Errorf("error reading service account key: %w", err)
		}
	}

	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("error parsing service account key: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("error creating sheets service: %w", err)
	}
	return srv, nil
}

// OpenSheetsWorksheet finds the named tab, creating it with the post header
// when the spreadsheet does not have it yet.
func OpenSheetsWorksheet(ctx context.Context, srv *sheets.Service, spreadsheetID, title string) (*SheetsWorksheet, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is empty")
	}

	spreadsheet, err := srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error opening spreadsheet: %w", err)
	}

	w := &SheetsWorksheet{srv: srv, spreadsheetID: spreadsheetID, title: title}
	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			w.sheetID = s.Properties.SheetId
			return w, nil
		}
	}

	resp, err := srv.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    newSheetRows,
						ColumnCount: int64(len(models.PostHeaders)),
					},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error creating worksheet %q: %w", title, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		w.sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	slog.Info("worksheet created", "title", title, "sheet_id", w.sheetID)

	if err := w.AppendRow(ctx, models.PostHeaders); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *SheetsWorksheet) a1(ref string) string {
	return "'" + strings.ReplaceAll(w.title, "'", "''") + "'!" + ref
}

func (w *SheetsWorksheet) RowValues(ctx context.Context, row int) ([]string, error) {
	resp, err := w.srv.Spreadsheets.Values.Get(w.spreadsheetID, w.a1(fmt.Sprintf("%d:%d", row, row))).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

func (w *SheetsWorksheet) AllValues(ctx context.Context) ([][]string, error) {
	resp, err := w.srv.Spreadsheets.Values.Get(w.spreadsheetID, w.a1("A:"+columnLetter(len(models.PostHeaders)))).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = toStrings(r)
	}
	return rows, nil
}

func (w *SheetsWorksheet) UpdateRow(ctx context.Context, row int, values []string) error {
	ref := fmt.Sprintf("A%d:%s%d", row, columnLetter(len(values)), row)
	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(values)}}

	_, err := w.srv.Spreadsheets.Values.Update(w.spreadsheetID, w.a1(ref), vr).ValueInputOption(valueInput).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (w *SheetsWorksheet) UpdateCells(ctx context.Context, row int, cells map[int]string) error {
	if len(cells) == 0 {
		return nil
	}

	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: valueInput}
	for col, value := range cells {
		req.Data = append(req.Data, &sheets.ValueRange{
			Range:  w.a1(fmt.Sprintf("%s%d", columnLetter(col), row)),
			Values: [][]interface{}{{value}},
		})
	}

	_, err := w.srv.Spreadsheets.Values.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (w *SheetsWorksheet) AppendRow(ctx context.Context, values []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(values)}}

	_, err := w.srv.Spreadsheets.Values.Append(w.spreadsheetID, w.a1("A1"), vr).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (w *SheetsWorksheet) DeleteRow(ctx context.Context, row int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         w.sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}

	_, err := w.srv.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
