package sales

import "time"

// Product source headers (produtos.csv).
const (
	SrcProdID           = "COD_ID_PRODUTO"
	SrcProdCategoryID   = "COD_ID_CATEGORIA_PRODUTO"
	SrcProdCategoryPath = "ARR_CATEGORIAS_PRODUTO"
	SrcProdDescription  = "DES_PRODUTO"
	SrcProdUnit         = "DES_UNIDADE"
	SrcProdBarcode      = "COD_CODIGO_BARRAS"
)

// ProductColumns is the column order of Product.Values.
var ProductColumns = []string{
	"cod_id_produto",
	"cod_id_categoria_produto",
	"arr_categorias_produto",
	"des_produto",
	"des_unidade",
	"cod_codigo_barras",
}

// Product is one catalog row. Barcode is nil when the source value was
// missing or not numeric.
type Product struct {
	ProductID    string
	CategoryID   string
	CategoryPath string
	Description  string
	Unit         string
	Barcode      *int64
}

// Values returns the row aligned to ProductColumns.
func (p Product) Values() []any {
	return []any{
		p.ProductID,
		nullString(p.CategoryID),
		nullString(p.CategoryPath),
		nullString(p.Description),
		nullString(p.Unit),
		nullInt(p.Barcode),
	}
}

// Customer source keys (clientes.json).
const (
	SrcCustID        = "COD_ID_CLIENTE"
	SrcCustType      = "DES_TIPO_CLIENTE"
	SrcCustName      = "NOM_NOME"
	SrcCustSex       = "DES_SEXO_CLIENTE"
	SrcCustBirthDate = "DAT_DATA_NASCIMENTO"
)

// BirthDateLayout is the layout of the customer birth date.
const BirthDateLayout = "2006-01-02"

// CustomerColumns is the column order of Customer.Values.
var CustomerColumns = []string{
	"cod_id_cliente",
	"des_tipo_cliente",
	"nom_nome",
	"des_sexo_cliente",
	"dat_data_nascimento",
}

// Customer is one customer document.
type Customer struct {
	CustomerID   int64
	CustomerType string
	Name         string
	Sex          string
	BirthDate    *time.Time
}

// Values returns the row aligned to CustomerColumns.
func (c Customer) Values() []any {
	return []any{
		c.CustomerID,
		nullString(c.CustomerType),
		nullString(c.Name),
		nullString(c.Sex),
		nullTime(c.BirthDate),
	}
}
