package openapi

import (
	"encoding/json"
	"encoding/xml"

	"github.com/careseek/importer/internal/models"
)

// resultCodeOK is the application-level success code embedded in the
// response header. Anything else is a failure even on HTTP 200.
const resultCodeOK = "00"

// envelope is the common response shape for both serializations.
type envelope struct {
	XMLName xml.Name       `xml:"response" json:"-"`
	Header  responseHeader `xml:"header" json:"header"`
	Body    responseBody   `xml:"body" json:"body"`
}

type responseHeader struct {
	ResultCode string `xml:"resultCode" json:"resultCode"`
	ResultMsg  string `xml:"resultMsg" json:"resultMsg"`
}

type responseBody struct {
	Items      itemList `xml:"items>item" json:"items"`
	TotalCount int      `xml:"totalCount" json:"totalCount"`
	PageNo     int      `xml:"pageNo" json:"pageNo"`
	NumOfRows  int      `xml:"numOfRows" json:"numOfRows"`
}

// item is one facility row as the remote API serializes it.
type item struct {
	Name       string `xml:"yadmNm" json:"yadmNm"`
	Address    string `xml:"addr" json:"addr"`
	Phone      string `xml:"telno" json:"telno"`
	Department string `xml:"deptNm" json:"deptNm"`
	Kind       string `xml:"clCdNm" json:"clCdNm"`
}

func (it item) toRaw() models.RawRecord {
	return models.RawRecord{
		models.FieldName:       it.Name,
		models.FieldAddress:    it.Address,
		models.FieldPhone:      it.Phone,
		models.FieldDepartment: it.Department,
		models.FieldKind:       it.Kind,
	}
}

// itemList absorbs the API's shape collapse: an empty items field, a
// single object, or an array must all normalize to a plain list before
// anything downstream sees them.
type itemList []item

func (l *itemList) UnmarshalJSON(data []byte) error {
	// An empty page serializes the whole items field as "" or null.
	if len(data) == 0 || string(data) == "null" || string(data) == `""` {
		*l = nil
		return nil
	}

	// The JSON body nests items under an "item" key mirroring the XML.
	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if len(wrapper.Item) == 0 || string(wrapper.Item) == "null" || string(wrapper.Item) == `""` {
		*l = nil
		return nil
	}

	var many []item
	if err := json.Unmarshal(wrapper.Item, &many); err == nil {
		*l = many
		return nil
	}

	var one item
	if err := json.Unmarshal(wrapper.Item, &one); err != nil {
		return err
	}
	*l = itemList{one}
	return nil
}

// Page is one normalized page of source records.
type Page struct {
	Records    []models.RawRecord
	TotalCount int
}

func (e *envelope) toPage() *Page {
	records := make([]models.RawRecord, 0, len(e.Body.Items))
	for _, it := range e.Body.Items {
		records = append(records, it.toRaw())
	}
	return &Page{Records: records, TotalCount: e.Body.TotalCount}
}
