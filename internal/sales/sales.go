// Package sales defines the retail records moved by the pipeline: sales
// lines, catalog products and customers, plus the source header names and
// persisted column names for each.
package sales

import (
	"strings"
	"time"
)

// Source header names of the sales extract (vendas.csv).
const (
	SrcSaleKey      = "COD_ID_VENDA_UNICO"
	SrcStoreID      = "COD_ID_LOJA"
	SrcCustomerID   = "COD_ID_CLIENTE"
	SrcCustomerType = "DES_TIPO_CLIENTE"
	SrcCustomerSex  = "DES_SEXO_CLIENTE"
	SrcProductID    = "COD_ID_PRODUTO"
	SrcSaleDate     = "NUM_ANOMESDIA"
	SrcGross        = "VAL_VALOR_SEM_DESC"
	SrcDiscount     = "VAL_VALOR_DESCONTO"
	SrcNet          = "VAL_VALOR_COM_DESC"
	SrcWeightKg     = "VAL_QUANTIDADE_KG"
)

// Persisted column names of the sales table.
const (
	ColSaleKey      = "cod_id_venda_unico"
	ColSaleDate     = "data_venda"
	ColStoreID      = "cod_id_loja"
	ColCustomerID   = "cod_id_cliente"
	ColCustomerType = "des_tipo_cliente"
	ColCustomerSex  = "des_sexo_cliente"
	ColProductID    = "cod_id_produto"
	ColGross        = "val_valor_sem_desc"
	ColDiscount     = "val_valor_desconto"
	ColNet          = "val_valor_com_desc"
	ColWeightKg     = "val_quantidade_kg"
)

// KeySeparator joins the store and coupon segments of a sale key.
const KeySeparator = "|"

// DefaultCustomerType replaces a missing customer type.
const DefaultCustomerType = "F"

// DateLayout is the fixed layout of the source sale date.
const DateLayout = "20060102"

// SaleColumns is the column order of Sale.Values.
var SaleColumns = []string{
	ColSaleKey,
	ColSaleDate,
	ColStoreID,
	ColCustomerID,
	ColCustomerType,
	ColCustomerSex,
	ColProductID,
	ColGross,
	ColDiscount,
	ColNet,
	ColWeightKg,
}

// SaleRename maps source headers to persisted column names.
var SaleRename = map[string]string{
	SrcSaleKey:      ColSaleKey,
	SrcSaleDate:     ColSaleDate,
	SrcStoreID:      ColStoreID,
	SrcCustomerID:   ColCustomerID,
	SrcCustomerType: ColCustomerType,
	SrcCustomerSex:  ColCustomerSex,
	SrcProductID:    ColProductID,
	SrcGross:        ColGross,
	SrcDiscount:     ColDiscount,
	SrcNet:          ColNet,
	SrcWeightKg:     ColWeightKg,
}

// Sale is one cleaned sales line.
//
// StoreID is kept as text: store codes carry leading zeros that a numeric
// type would lose. Nil amount pointers are persisted as NULL.
type Sale struct {
	SaleKey      string
	StoreID      string
	CustomerID   int64
	CustomerType string
	CustomerSex  string
	ProductID    string
	SaleDate     time.Time
	Gross        *float64
	Discount     *float64
	Net          *float64
	WeightKg     *float64

	// Line is the source line the sale was read from (0 when unknown).
	Line int
}

// DedupKey identifies a sale line within a batch.
type DedupKey struct {
	SaleKey   string
	ProductID string
}

// Key returns the dedup key of s.
func (s Sale) Key() DedupKey { return DedupKey{SaleKey: s.SaleKey, ProductID: s.ProductID} }

// SplitKey splits a sale key on the separator. ok is false unless the key
// holds exactly one separator.
func SplitKey(key string) (store, coupon string, ok bool) {
	if strings.Count(key, KeySeparator) != 1 {
		return "", "", false
	}
	store, coupon, _ = strings.Cut(key, KeySeparator)
	return store, coupon, true
}

// JoinKey builds a sale key from its segments.
func JoinKey(store, coupon string) string { return store + KeySeparator + coupon }

// Values returns the row aligned to SaleColumns.
func (s Sale) Values() []any {
	return []any{
		s.SaleKey,
		s.SaleDate,
		s.StoreID,
		s.CustomerID,
		s.CustomerType,
		nullString(s.CustomerSex),
		s.ProductID,
		nullFloat(s.Gross),
		nullFloat(s.Discount),
		nullFloat(s.Net),
		nullFloat(s.WeightKg),
	}
}

// SaleRows converts a batch to positional rows for the sink.
func SaleRows(in []Sale) [][]any {
	out := make([][]any, len(in))
	for i := range in {
		out[i] = in[i].Values()
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
