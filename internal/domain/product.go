package domain

// ProductType identifies the loan product a record belongs to.
type ProductType string

const (
	ProductMortgage     ProductType = "Mortgage"
	ProductPersonalLoan ProductType = "Personal Loan"
	ProductAutoLoan     ProductType = "Auto Loan"
	ProductCreditCard   ProductType = "Credit Card"
	ProductSMELoan      ProductType = "SME Loan"
)

// AllProducts returns the recognized products in reporting order.
func AllProducts() []ProductType {
	return []ProductType{
		ProductMortgage,
		ProductPersonalLoan,
		ProductAutoLoan,
		ProductCreditCard,
		ProductSMELoan,
	}
}

// String returns the string representation of ProductType.
func (p ProductType) String() string {
	return string(p)
}

// Known reports whether p is one of the recognized products.
// Unknown products are still accepted by the engine, which falls back to
// default parameters and flags the record.
func (p ProductType) Known() bool {
	switch p {
	case ProductMortgage, ProductPersonalLoan, ProductAutoLoan, ProductCreditCard, ProductSMELoan:
		return true
	}
	return false
}
