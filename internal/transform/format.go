package transform

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// convertFormat dispatches a FormatConversion rule between the wire
// encodings a Profile names. No third-party XML or CSV library surfaced
// in the example pack for this kind of tree/tabular reshaping, so both
// directions use the standard library the way the SOAP and XML-RPC
// adapters already do for XML.
func convertFormat(data interface{}, from, to string, params map[string]interface{}) (interface{}, error) {
	if from == to {
		return data, nil
	}

	switch {
	case from == "JSON" && to == "XML":
		root, _ := params["root_element"].(string)
		if root == "" {
			root = "root"
		}
		return jsonToXML(data, root)
	case from == "XML" && to == "JSON":
		raw, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("XML source must be a string")
		}
		return xmlToJSON(raw)
	case from == "JSON" && to == "CSV":
		delim, _ := params["delimiter"].(string)
		header, _ := params["header"].(bool)
		return jsonToCSV(data, delim, header)
	case from == "CSV" && to == "JSON":
		raw, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("CSV source must be a string")
		}
		delim, _ := params["delimiter"].(string)
		header, _ := params["header"].(bool)
		return csvToJSON(raw, delim, header)
	default:
		return nil, fmt.Errorf("unsupported format conversion %s -> %s", from, to)
	}
}

// jsonToXML renders a JSON-shaped value as an XML document: nested maps
// become nested elements, list members become repeated <item> elements.
func jsonToXML(data interface{}, rootElement string) (string, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := writeXMLElement(enc, rootElement, data); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeXMLElement(enc *xml.Encoder, name string, value interface{}) error {
	start := xml.StartElement{Name: xml.Name{Local: sanitizeXMLName(name)}}

	switch v := value.(type) {
	case map[string]interface{}:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := writeXMLElement(enc, k, v[k]); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())
	case []interface{}:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		for _, item := range v {
			if err := writeXMLElement(enc, "item", item); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())
	default:
		return enc.EncodeElement(toStr(v), start)
	}
}

func sanitizeXMLName(name string) string {
	if name == "" {
		return "field"
	}
	return name
}

// xmlToJSON parses an XML document into nested maps; sibling elements
// sharing a tag name collapse into a list.
func xmlToJSON(raw string) (interface{}, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("empty XML document")
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decodeXMLElement(dec, start)
		}
	}
}

func decodeXMLElement(dec *xml.Decoder, start xml.StartElement) (interface{}, error) {
	children := make(map[string][]interface{})
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			val, err := decodeXMLElement(dec, t)
			if err != nil {
				return nil, err
			}
			children[t.Name.Local] = append(children[t.Name.Local], val)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(children) == 0 {
				return strings.TrimSpace(text.String()), nil
			}
			out := make(map[string]interface{}, len(children))
			for name, values := range children {
				if name == "item" {
					return values, nil
				}
				if len(values) == 1 {
					out[name] = values[0]
				} else {
					out[name] = values
				}
			}
			return out, nil
		}
	}
}

// jsonToCSV renders a list of flat records as CSV text.
func jsonToCSV(data interface{}, delim string, header bool) (string, error) {
	records, ok := data.([]interface{})
	if !ok {
		return "", fmt.Errorf("CSV source must be a list of records")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if delim != "" {
		w.Comma = []rune(delim)[0]
	}

	var columns []string
	if len(records) > 0 {
		if first, ok := records[0].(map[string]interface{}); ok {
			for k := range first {
				columns = append(columns, k)
			}
			sort.Strings(columns)
		}
	}

	if header && len(columns) > 0 {
		if err := w.Write(columns); err != nil {
			return "", err
		}
	}

	for _, rec := range records {
		row, ok := rec.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("CSV row is not a record")
		}
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = toStr(row[col])
		}
		if err := w.Write(values); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// csvToJSON parses CSV text into a list of records keyed by its header
// row (or by positional "column0", "column1", ... when header is false).
func csvToJSON(raw, delim string, header bool) (interface{}, error) {
	r := csv.NewReader(strings.NewReader(raw))
	if delim != "" {
		r.Comma = []rune(delim)[0]
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []interface{}{}, nil
	}

	columns := rows[0]
	dataRows := rows[1:]
	if !header {
		columns = make([]string, len(rows[0]))
		for i := range columns {
			columns[i] = fmt.Sprintf("column%d", i)
		}
		dataRows = rows
	}

	out := make([]interface{}, 0, len(dataRows))
	for _, row := range dataRows {
		rec := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
