package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/timmy/shareledger/internal/domain"
)

func insertOneXML(clientCode, securityCode, isin, quantity, totalCost, positionType string) string {
	return fmt.Sprintf(`<InsertOne>
  <ClientCode>%s</ClientCode>
  <SecurityCode>%s</SecurityCode>
  <ISIN>%s</ISIN>
  <Quantity>%s</Quantity>
  <TotalCost>%s</TotalCost>
  <PositionType>%s</PositionType>
</InsertOne>`, clientCode, securityCode, isin, quantity, totalCost, positionType)
}

func wrap(items ...string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Positions>
` + strings.Join(items, "\n") + `
</Positions>`)
}

func TestParse_ValidDocumentKeepsOrder(t *testing.T) {
	data := wrap(
		insertOneXML("1001", "ACME", "US0378331005", "150", "12500.75", "long"),
		insertOneXML("1002", "GLOBX", "GB0002634946", "-40", "3300", "SHORT"),
		insertOneXML(" 1003 ", "INITECH", "de0007164600", "0", "1.5e3", "Long"),
	)

	positions, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(positions))
	}

	want := []domain.Position{
		{ClientCode: 1001, SecurityCode: "ACME", ISIN: "US0378331005", Quantity: 150, TotalCost: 12500.75, PositionType: domain.PositionTypeLong},
		{ClientCode: 1002, SecurityCode: "GLOBX", ISIN: "GB0002634946", Quantity: -40, TotalCost: 3300, PositionType: domain.PositionTypeShort},
		{ClientCode: 1003, SecurityCode: "INITECH", ISIN: "de0007164600", Quantity: 0, TotalCost: 1500, PositionType: domain.PositionTypeLong},
	}
	for i := range want {
		if positions[i] != want[i] {
			t.Errorf("position %d: got %+v, want %+v", i, positions[i], want[i])
		}
	}
}

func TestParse_CountMatchesElements(t *testing.T) {
	for _, k := range []int{0, 1, 7, 250} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			items := make([]string, k)
			for i := range items {
				items[i] = insertOneXML(fmt.Sprint(i), "SEC", "US0378331005", fmt.Sprint(i*10), "1.00", "long")
			}
			positions, err := Parse(wrap(items...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(positions) != k {
				t.Fatalf("expected %d positions, got %d", k, len(positions))
			}
			for i, p := range positions {
				if p.ClientCode != int64(i) {
					t.Errorf("position %d out of order: client code %d", i, p.ClientCode)
				}
			}
		})
	}
}

func TestParse_ISINIsFreeText(t *testing.T) {
	for _, isin := range []string{"ISIN001", "NOT-AN-ISIN", "us0378331005", "  X  "} {
		t.Run(isin, func(t *testing.T) {
			positions, err := Parse(wrap(insertOneXML("1", "ACME", isin, "1", "1", "long")))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := strings.TrimSpace(isin); positions[0].ISIN != want {
				t.Errorf("ISIN: got %q, want %q", positions[0].ISIN, want)
			}
		})
	}
}

func TestParse_IgnoresNestedInsertOne(t *testing.T) {
	data := []byte(`<Root>` + insertOneXML("1", "A", "US0378331005", "1", "1", "long") +
		`<Group>` + insertOneXML("2", "B", "US0378331005", "1", "1", "long") + `</Group></Root>`)

	positions, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected only direct children to be read, got %d positions", len(positions))
	}
}

func TestParse_FailsWholeBatch(t *testing.T) {
	valid := insertOneXML("1", "ACME", "US0378331005", "10", "100.0", "long")

	tests := []struct {
		name      string
		data      []byte
		wantIndex int
		wantField string
	}{
		{
			name:      "non numeric quantity",
			data:      wrap(valid, insertOneXML("2", "ACME", "US0378331005", "abc", "100.0", "long")),
			wantIndex: 2,
			wantField: FieldQuantity,
		},
		{
			name:      "decimal quantity",
			data:      wrap(insertOneXML("2", "ACME", "US0378331005", "1.5", "100.0", "long"), valid),
			wantIndex: 1,
			wantField: FieldQuantity,
		},
		{
			name:      "non numeric client code",
			data:      wrap(insertOneXML("C-1", "ACME", "US0378331005", "1", "100.0", "long")),
			wantIndex: 1,
			wantField: FieldClientCode,
		},
		{
			name:      "locale formatted total cost",
			data:      wrap(valid, insertOneXML("2", "ACME", "US0378331005", "1", "1.234,50", "long")),
			wantIndex: 2,
			wantField: FieldTotalCost,
		},
		{
			name:      "hex total cost",
			data:      wrap(insertOneXML("2", "ACME", "US0378331005", "1", "0x1p4", "long")),
			wantIndex: 1,
			wantField: FieldTotalCost,
		},
		{
			name:      "nan total cost",
			data:      wrap(insertOneXML("2", "ACME", "US0378331005", "1", "NaN", "long")),
			wantIndex: 1,
			wantField: FieldTotalCost,
		},
		{
			name:      "unknown position type",
			data:      wrap(valid, valid, insertOneXML("2", "ACME", "US0378331005", "1", "1", "sideways")),
			wantIndex: 3,
			wantField: FieldPositionType,
		},
		{
			name:      "empty isin",
			data:      wrap(valid, `<InsertOne><ClientCode>2</ClientCode><SecurityCode>ACME</SecurityCode><ISIN/><Quantity>1</Quantity><TotalCost>1</TotalCost><PositionType>long</PositionType></InsertOne>`),
			wantIndex: 2,
			wantField: FieldISIN,
		},
		{
			name: "repeated quantity",
			data: wrap(`<InsertOne>
  <ClientCode>2</ClientCode>
  <SecurityCode>ACME</SecurityCode>
  <ISIN>US0378331005</ISIN>
  <Quantity>1</Quantity>
  <Quantity>2</Quantity>
  <TotalCost>1</TotalCost>
  <PositionType>long</PositionType>
</InsertOne>`, valid),
			wantIndex: 1,
			wantField: FieldQuantity,
		},
		{
			name:      "empty security code",
			data:      wrap(insertOneXML("2", "  ", "US0378331005", "1", "1", "long")),
			wantIndex: 1,
			wantField: FieldSecurityCode,
		},
		{
			name: "missing total cost",
			data: wrap(valid, `<InsertOne>
  <ClientCode>2</ClientCode>
  <SecurityCode>ACME</SecurityCode>
  <ISIN>US0378331005</ISIN>
  <Quantity>1</Quantity>
  <PositionType>long</PositionType>
</InsertOne>`),
			wantIndex: 2,
			wantField: FieldTotalCost,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			positions, err := Parse(tc.data)
			if err == nil {
				t.Fatalf("expected error, got %d positions", len(positions))
			}
			if positions != nil {
				t.Errorf("expected no positions on error, got %d", len(positions))
			}
			var pe *domain.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *domain.ParseError, got %T: %v", err, err)
			}
			if pe.Index != tc.wantIndex {
				t.Errorf("index: got %d, want %d", pe.Index, tc.wantIndex)
			}
			if pe.Field != tc.wantField {
				t.Errorf("field: got %q, want %q", pe.Field, tc.wantField)
			}
			if !strings.Contains(err.Error(), tc.wantField) {
				t.Errorf("error message %q does not mention %s", err.Error(), tc.wantField)
			}
		})
	}
}

func TestParse_MalformedDocument(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "whitespace", data: "  \n\t"},
		{name: "unclosed element", data: "<Positions><InsertOne>"},
		{name: "not xml", data: "ClientCode,Quantity\n1,2"},
		{name: "two roots", data: "<A></A><B></B>"},
		{name: "mismatched tags", data: "<Positions><InsertOne></Positions></InsertOne>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			var pe *domain.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *domain.ParseError, got %v", err)
			}
			if pe.Index != 0 {
				t.Errorf("document-level error should have index 0, got %d", pe.Index)
			}
		})
	}
}
