package erp

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RPC service names understood by the ERP gateway.
const (
	serviceLogin       = "MobileLoginSP.login"
	serviceLoadRecords = "CRUDServiceProvider.loadRecords"
	serviceSaveRecord  = "CRUDServiceProvider.saveRecord"
)

// Root entities addressed through the CRUD service.
const (
	entityPartner     = "Parceiro"
	entityCompany     = "Empresa"
	entityProduct     = "Produto"
	entityOrderHeader = "CabecalhoNota"
	entityOrderItem   = "ItemNota"
	entitySeller      = "Vendedor"
)

// rpcRequest is the envelope every call to the gateway is wrapped in.
type rpcRequest struct {
	ServiceName string `json:"serviceName"`
	RequestBody any    `json:"requestBody"`
}

// rpcResponse is the envelope returned by the gateway.
type rpcResponse struct {
	Status       string          `json:"status"`
	ResponseBody json.RawMessage `json:"responseBody"`
}

type loginRequestBody struct {
	Username string `json:"NOMUSU"`
	Password string `json:"INTERNO"`
}

type loginResponseBody struct {
	SessionID string `json:"jsessionid"`
}

type loadRecordsBody struct {
	DataSet loadDataSet `json:"dataSet"`
}

type loadDataSet struct {
	RootEntity                string    `json:"rootEntity"`
	IncludePresentationFields string    `json:"includePresentationFields"`
	Criteria                  *criteria `json:"criteria,omitempty"`
}

type criteria struct {
	Expression expression `json:"expression"`
}

type expression struct {
	Statement string `json:"$"`
}

type loadRecordsResponse struct {
	Entities []entityRow `json:"entities"`
}

type saveRecordBody struct {
	DataSet saveDataSet `json:"dataSet"`
}

type saveDataSet struct {
	RootEntity string  `json:"rootEntity"`
	DataRow    dataRow `json:"dataRow"`
}

type dataRow struct {
	LocalFields map[string]any `json:"localFields"`
}

type saveRecordResponse struct {
	PrimaryKey map[string]json.Number `json:"primaryKey"`
}

// entityRow is one record from a loadRecords response, keyed by the ERP
// column codes. Values arrive as strings or numbers depending on the
// column type, so typed access goes through the helpers below.
type entityRow map[string]any

func (r entityRow) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return decimal.NewFromFloat(v).String()
	default:
		return ""
	}
}

func (r entityRow) int64(key string) int64 {
	switch v := r[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return 0
		}
		return d.IntPart()
	default:
		return 0
	}
}

func (r entityRow) decimal(key string) decimal.Decimal {
	switch v := r[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// flag reads an "S"/"N" column as a boolean.
func (r entityRow) flag(key string) bool {
	return r.str(key) == "S"
}
