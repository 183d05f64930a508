package constants

// DocType classifies what kind of document was scanned.
type DocType string

const (
	PflegeheimInvoice DocType = "pflegeheim_invoice"
	TaxNotice         DocType = "tax_notice"
	TaxReturn         DocType = "tax_return"
	HealthInsurance   DocType = "health_insurance"
	CareInsurance     DocType = "care_insurance"
	MedicalReport     DocType = "medical_report"
	GovernmentNotice  DocType = "government_notice"
	Pension           DocType = "pension"
	BankStatement     DocType = "bank_statement"
	UtilityBill       DocType = "utility_bill"
	LegalNotice       DocType = "legal_notice"
	Correspondence    DocType = "correspondence"
	Pharmacy          DocType = "pharmacy"
	DocTypeOther      DocType = "other"
)

var allDocTypes = []DocType{
	PflegeheimInvoice, TaxNotice, TaxReturn, HealthInsurance, CareInsurance,
	MedicalReport, GovernmentNotice, Pension, BankStatement, UtilityBill,
	LegalNotice, Correspondence, Pharmacy, DocTypeOther,
}

// DocTypes returns the allowed doc_type values in prompt order.
func DocTypes() []string {
	out := make([]string, len(allDocTypes))
	for i, t := range allDocTypes {
		out[i] = string(t)
	}
	return out
}

// IsDocType reports whether s is a known doc_type value.
func IsDocType(s string) bool {
	for _, t := range allDocTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}
