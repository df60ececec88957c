// Package parser turns uploaded position XML into domain positions.
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/timmy/shareledger/internal/domain"
)

// Field names as they appear in the wire format.
const (
	FieldClientCode   = "ClientCode"
	FieldSecurityCode = "SecurityCode"
	FieldISIN         = "ISIN"
	FieldQuantity     = "Quantity"
	FieldTotalCost    = "TotalCost"
	FieldPositionType = "PositionType"
)

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// document matches any root element; only direct InsertOne children are read.
type document struct {
	Items []insertOne `xml:"InsertOne"`
}

// Slices distinguish an absent element from an empty one and expose repeats.
type insertOne struct {
	ClientCode   []string `xml:"ClientCode"`
	SecurityCode []string `xml:"SecurityCode"`
	ISIN         []string `xml:"ISIN"`
	Quantity     []string `xml:"Quantity"`
	TotalCost    []string `xml:"TotalCost"`
	PositionType []string `xml:"PositionType"`
}

// Parse decodes data into positions in document order.
// Any malformed document or field fails the whole batch with a *domain.ParseError
// and no positions are returned.
func Parse(data []byte) ([]domain.Position, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.ParseError{Reason: "empty document"}
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, &domain.ParseError{Reason: "malformed XML", Cause: err}
	}
	if err := ensureNoTrailingContent(dec); err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(doc.Items))
	for i, item := range doc.Items {
		p, err := item.toPosition(i + 1)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// ensureNoTrailingContent rejects a second root element after the first one.
func ensureNoTrailingContent(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &domain.ParseError{Reason: "malformed XML", Cause: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return &domain.ParseError{Reason: "unexpected element <" + t.Name.Local + "> after document root"}
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return &domain.ParseError{Reason: "unexpected text after document root"}
			}
		}
	}
}

func (it insertOne) toPosition(index int) (domain.Position, error) {
	var p domain.Position

	clientCode, err := requireText(index, FieldClientCode, it.ClientCode)
	if err != nil {
		return p, err
	}
	if p.ClientCode, err = parseInt(index, FieldClientCode, clientCode); err != nil {
		return p, err
	}

	if p.SecurityCode, err = requireText(index, FieldSecurityCode, it.SecurityCode); err != nil {
		return p, err
	}

	// free text, stored as given
	if p.ISIN, err = requireText(index, FieldISIN, it.ISIN); err != nil {
		return p, err
	}

	quantity, err := requireText(index, FieldQuantity, it.Quantity)
	if err != nil {
		return p, err
	}
	if p.Quantity, err = parseInt(index, FieldQuantity, quantity); err != nil {
		return p, err
	}

	totalCost, err := requireText(index, FieldTotalCost, it.TotalCost)
	if err != nil {
		return p, err
	}
	if p.TotalCost, err = parseDecimal(index, FieldTotalCost, totalCost); err != nil {
		return p, err
	}

	positionType, err := requireText(index, FieldPositionType, it.PositionType)
	if err != nil {
		return p, err
	}
	pt, ok := domain.ParsePositionType(positionType)
	if !ok {
		return p, &domain.ParseError{Index: index, Field: FieldPositionType, Reason: "unknown position type " + strconv.Quote(positionType)}
	}
	p.PositionType = pt

	return p, nil
}

func requireText(index int, field string, values []string) (string, error) {
	switch len(values) {
	case 0:
		return "", &domain.ParseError{Index: index, Field: field, Reason: "missing required field"}
	case 1:
	default:
		return "", &domain.ParseError{Index: index, Field: field, Reason: "duplicate element"}
	}
	s := strings.TrimSpace(values[0])
	if s == "" {
		return "", &domain.ParseError{Index: index, Field: field, Reason: "empty value"}
	}
	return s, nil
}

func parseInt(index int, field, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &domain.ParseError{Index: index, Field: field, Reason: "invalid integer " + strconv.Quote(s)}
	}
	return n, nil
}

func parseDecimal(index int, field, s string) (float64, error) {
	if !decimalPattern.MatchString(s) {
		return 0, &domain.ParseError{Index: index, Field: field, Reason: "invalid decimal " + strconv.Quote(s)}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// out of range
		return 0, &domain.ParseError{Index: index, Field: field, Reason: "invalid decimal " + strconv.Quote(s)}
	}
	return f, nil
}
