package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/remote"
)

// maxResponseSize is the maximum allowed response size from the ERP gateway (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Column codes of the ERP entities addressed through the CRUD service.
const (
	fieldPartnerID    = "CODPARC"
	fieldPartnerName  = "NOMEPARC"
	fieldEmail        = "EMAIL"
	fieldPhone        = "TELEFONE"
	fieldTaxID        = "CGC_CPF"
	fieldPersonType   = "TIPPESSOA"
	fieldActive       = "ATIVO"
	fieldSupplierFlag = "FORNECEDOR"
	fieldCustomerFlag = "CLIENTE"

	fieldCompanyID        = "CODEMP"
	fieldCompanyName      = "NOMEFANTASIA"
	fieldCompanyLegalName = "RAZAOSOCIAL"
	fieldCompanyTaxID     = "CGC"

	fieldProductID    = "CODPROD"
	fieldProductName  = "DESCRPROD"
	fieldProductCode  = "REFERENCIA"
	fieldProductPrice = "VLRVENDA"
	fieldProductStock = "ESTOQUE"

	fieldOrderID       = "NUNOTA"
	fieldSellerID      = "CODVEND"
	fieldOrderDate     = "DTNEG"
	fieldOrderTotal    = "VLRNOTA"
	fieldOrderStatus   = "STATUSNOTA"
	fieldMovementType  = "TIPMOV"
	fieldInvoiceNumber = "NUMNOTA"

	fieldLineQuantity  = "QTDNEG"
	fieldLineUnitPrice = "VLRUNIT"
	fieldLineTotal     = "VLRTOT"

	fieldSellerName = "NOMEVEND"
)

// Client talks to the ERP's single RPC-style integration endpoint. Every
// call goes through the request pipeline: rate budget, session, request
// with the three required credentials, and a single forced-refresh retry
// when the gateway answers 401.
type Client struct {
	config     *Config
	httpClient *http.Client
	session    *Session
	limiter    *remote.WindowLimiter
	retry      remote.AuthRetryPolicy
	logger     *zap.Logger
}

// NewClient creates an ERP client with the given configuration.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		session:    NewSession(config, httpClient, logger),
		limiter:    remote.NewWindowLimiter(config.RateLimitPerMinute, time.Minute),
		retry:      remote.DefaultAuthRetryPolicy(integration.IsUnauthorized),
		logger:     logger,
	}, nil
}

// Session exposes the session manager, mainly for tests.
func (c *Client) Session() *Session {
	return c.session
}

// ---------------------------------------------------------------------------
// Request Pipeline
// ---------------------------------------------------------------------------

// call runs one RPC through the pipeline. The rate counter is charged per
// attempt, the retried one included.
func (c *Client) call(ctx context.Context, serviceName string, requestBody any) (json.RawMessage, error) {
	var result json.RawMessage

	attempt := func(ctx context.Context) error {
		if err := c.limiter.TryAcquire(); err != nil {
			return err
		}
		if err := c.session.EnsureValid(ctx); err != nil {
			return err
		}
		raw, err := c.doRequest(ctx, serviceName, requestBody)
		if err != nil {
			return err
		}
		result = raw
		return nil
	}

	if err := c.retry.Do(ctx, attempt, c.session.ForceRefresh); err != nil {
		return nil, err
	}
	return result, nil
}

// doRequest performs one HTTP round trip to the gateway.
func (c *Client) doRequest(ctx context.Context, serviceName string, requestBody any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{ServiceName: serviceName, RequestBody: requestBody})
	if err != nil {
		return nil, fmt.Errorf("erp: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/service.sbr", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("erp: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", "JSESSIONID="+c.session.ID())
	req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	req.Header.Set("token", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("erp: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &integration.RemoteAPIError{
			System: integration.SystemERP,
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("erp: malformed response envelope: %w", err)
	}
	return envelope.ResponseBody, nil
}

// loadRecords queries one root entity with an optional criteria expression.
func (c *Client) loadRecords(ctx context.Context, rootEntity, expr string) ([]entityRow, error) {
	body := loadRecordsBody{
		DataSet: loadDataSet{
			RootEntity:                rootEntity,
			IncludePresentationFields: "S",
		},
	}
	if expr != "" {
		body.DataSet.Criteria = &criteria{Expression: expression{Statement: expr}}
	}

	raw, err := c.call(ctx, serviceLoadRecords, body)
	if err != nil {
		return nil, err
	}

	var result loadRecordsResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("erp: malformed loadRecords response: %w", err)
	}
	return result.Entities, nil
}

// saveRecord writes one row of a root entity and returns the response.
func (c *Client) saveRecord(ctx context.Context, rootEntity string, fields map[string]any) (*saveRecordResponse, error) {
	body := saveRecordBody{
		DataSet: saveDataSet{
			RootEntity: rootEntity,
			DataRow:    dataRow{LocalFields: fields},
		},
	}

	raw, err := c.call(ctx, serviceSaveRecord, body)
	if err != nil {
		return nil, err
	}

	var result saveRecordResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("erp: malformed saveRecord response: %w", err)
	}
	return &result, nil
}

// escapeLiteral doubles single quotes for use in a criteria expression.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ---------------------------------------------------------------------------
// Partner Operations
// ---------------------------------------------------------------------------

// ListSuppliers returns all supplier-flagged partners.
func (c *Client) ListSuppliers(ctx context.Context) ([]integration.Partner, error) {
	rows, err := c.loadRecords(ctx, entityPartner, fieldSupplierFlag+" = 'S'")
	if err != nil {
		return nil, err
	}

	partners := make([]integration.Partner, 0, len(rows))
	for _, row := range rows {
		partners = append(partners, mapPartner(row))
	}
	return partners, nil
}

// FindPartnerByEmail returns the partner matching the email, or nil when
// no row matches.
func (c *Client) FindPartnerByEmail(ctx context.Context, email string) (*integration.Partner, error) {
	rows, err := c.loadRecords(ctx, entityPartner, fmt.Sprintf("%s = '%s'", fieldEmail, escapeLiteral(email)))
	if err != nil {
		if integration.IsRemoteNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	partner := mapPartner(rows[0])
	return &partner, nil
}

// FindPartnerByID returns the partner with the given id, or nil.
func (c *Client) FindPartnerByID(ctx context.Context, id int64) (*integration.Partner, error) {
	rows, err := c.loadRecords(ctx, entityPartner, fmt.Sprintf("%s = %d", fieldPartnerID, id))
	if err != nil {
		if integration.IsRemoteNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	partner := mapPartner(rows[0])
	return &partner, nil
}

// CreatePartner creates a partner row and returns the generated id.
func (c *Client) CreatePartner(ctx context.Context, partner integration.CreatePartner) (int64, error) {
	if err := partner.Validate(); err != nil {
		return 0, err
	}

	personType := partner.PersonType
	if personType == "" {
		personType = integration.DetectPersonType(partner.TaxID)
	}

	resp, err := c.saveRecord(ctx, entityPartner, map[string]any{
		fieldPartnerName:  partner.Name,
		fieldEmail:        partner.Email,
		fieldPhone:        partner.Phone,
		fieldTaxID:        partner.TaxID,
		fieldPersonType:   personType,
		fieldSupplierFlag: "S",
		fieldCustomerFlag: "N",
		fieldActive:       "S",
	})
	if err != nil {
		return 0, err
	}

	id, err := primaryKeyInt64(resp, fieldPartnerID)
	if err != nil {
		return 0, err
	}

	c.logger.Info("ERP partner created",
		zap.Int64("partner_id", id),
		zap.String("email", partner.Email),
	)
	return id, nil
}

// mapPartner converts an entity row to the domain partner record.
func mapPartner(row entityRow) integration.Partner {
	return integration.Partner{
		ID:         row.int64(fieldPartnerID),
		Name:       row.str(fieldPartnerName),
		Email:      row.str(fieldEmail),
		Phone:      row.str(fieldPhone),
		TaxID:      row.str(fieldTaxID),
		PersonType: row.str(fieldPersonType),
		Active:     row.flag(fieldActive),
	}
}

// ---------------------------------------------------------------------------
// Read Operations
// ---------------------------------------------------------------------------

// ListCompanies returns the ERP legal entities.
func (c *Client) ListCompanies(ctx context.Context) ([]integration.Company, error) {
	rows, err := c.loadRecords(ctx, entityCompany, "")
	if err != nil {
		return nil, err
	}

	companies := make([]integration.Company, 0, len(rows))
	for _, row := range rows {
		companies = append(companies, integration.Company{
			ID:        row.int64(fieldCompanyID),
			Name:      row.str(fieldCompanyName),
			LegalName: row.str(fieldCompanyLegalName),
			TaxID:     row.str(fieldCompanyTaxID),
		})
	}
	return companies, nil
}

// ListProducts returns catalog products.
func (c *Client) ListProducts(ctx context.Context, activeOnly bool) ([]integration.Product, error) {
	expr := ""
	if activeOnly {
		expr = fieldActive + " = 'S'"
	}

	rows, err := c.loadRecords(ctx, entityProduct, expr)
	if err != nil {
		return nil, err
	}

	products := make([]integration.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, integration.Product{
			ID:     row.int64(fieldProductID),
			Name:   row.str(fieldProductName),
			Code:   row.str(fieldProductCode),
			Price:  row.decimal(fieldProductPrice),
			Stock:  row.decimal(fieldProductStock),
			Active: row.flag(fieldActive),
		})
	}
	return products, nil
}

// ListOrders returns sales orders negotiated at or after since.
func (c *Client) ListOrders(ctx context.Context, since time.Time) ([]integration.Order, error) {
	expr := fmt.Sprintf("%s IN ('V', 'S') AND %s >= '%s'",
		fieldMovementType, fieldOrderDate, since.Format("2006-01-02"))

	rows, err := c.loadRecords(ctx, entityOrderHeader, expr)
	if err != nil {
		return nil, err
	}

	orders := make([]integration.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, integration.Order{
			ID:            row.int64(fieldOrderID),
			PartnerID:     row.int64(fieldPartnerID),
			CompanyID:     row.int64(fieldCompanyID),
			SellerID:      row.int64(fieldSellerID),
			Date:          parseOrderDate(row.str(fieldOrderDate)),
			TotalAmount:   row.decimal(fieldOrderTotal),
			Status:        row.str(fieldOrderStatus),
			MovementType:  row.str(fieldMovementType),
			InvoiceNumber: row.str(fieldInvoiceNumber),
		})
	}
	return orders, nil
}

// ListSellers returns the salesperson records.
func (c *Client) ListSellers(ctx context.Context) ([]integration.Seller, error) {
	rows, err := c.loadRecords(ctx, entitySeller, "")
	if err != nil {
		return nil, err
	}

	sellers := make([]integration.Seller, 0, len(rows))
	for _, row := range rows {
		sellers = append(sellers, integration.Seller{
			ID:     row.int64(fieldSellerID),
			Name:   row.str(fieldSellerName),
			Email:  row.str(fieldEmail),
			Active: row.flag(fieldActive),
		})
	}
	return sellers, nil
}

// parseOrderDate parses the gateway's date formats, falling back to the
// zero time when none match.
func parseOrderDate(s string) time.Time {
	for _, layout := range []string{"02/01/2006", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ---------------------------------------------------------------------------
// Order Creation
// ---------------------------------------------------------------------------

// CreateOrder creates an order header, then one item row per line, and
// returns the generated order number. The header id is required for the
// item rows; a response without one is an error.
func (c *Client) CreateOrder(ctx context.Context, order integration.CreateOrder) (int64, error) {
	if err := order.Validate(); err != nil {
		return 0, err
	}

	companyID := order.CompanyID
	if companyID <= 0 {
		companyID = c.config.DefaultCompanyID
	}
	sellerID := order.SellerID
	if sellerID <= 0 {
		sellerID = c.config.DefaultSellerID
	}

	headerResp, err := c.saveRecord(ctx, entityOrderHeader, map[string]any{
		fieldPartnerID:    order.PartnerID,
		fieldCompanyID:    companyID,
		fieldSellerID:     sellerID,
		fieldOrderDate:    time.Now().Format(time.RFC3339),
		fieldMovementType: "V",
		fieldOrderStatus:  "L",
	})
	if err != nil {
		return 0, err
	}

	orderID, err := primaryKeyInt64(headerResp, fieldOrderID)
	if err != nil {
		return 0, err
	}

	for _, line := range order.Lines {
		if _, err := c.saveRecord(ctx, entityOrderItem, map[string]any{
			fieldOrderID:       orderID,
			fieldProductID:     line.ProductID,
			fieldLineQuantity:  line.Quantity,
			fieldLineUnitPrice: line.UnitPrice,
			fieldLineTotal:     line.Total(),
		}); err != nil {
			return 0, fmt.Errorf("erp: order %d: failed to save item for product %d: %w", orderID, line.ProductID, err)
		}
	}

	c.logger.Info("ERP order created",
		zap.Int64("order_id", orderID),
		zap.Int64("partner_id", order.PartnerID),
		zap.Int("lines", len(order.Lines)),
	)
	return orderID, nil
}

// primaryKeyInt64 extracts a numeric primary key from a save response.
func primaryKeyInt64(resp *saveRecordResponse, key string) (int64, error) {
	value, ok := resp.PrimaryKey[key]
	if !ok {
		return 0, fmt.Errorf("erp: save response carries no %s primary key", key)
	}
	id, err := value.Int64()
	if err != nil {
		return 0, fmt.Errorf("erp: malformed %s primary key: %w", key, err)
	}
	return id, nil
}

// Ensure Client implements the ERPGateway port
var _ integration.ERPGateway = (*Client)(nil)
