package auditgen

// Tables and values the generated statements refer to.

var tables = []string{
	"healthcare_patient", "healthcare_encounter", "pharmacy_order",
	"pharmacy_drug", "payments_payment_method",
}

var drugNames = []string{
	"Atorvastatin", "Levothyroxine", "Lisinopril", "Metformin", "Amlodipine",
	"Metoprolol", "Omeprazole", "Simvastatin", "Losartan", "Albuterol",
	"Gabapentin", "Sertraline", "Furosemide", "Acetaminophen", "Prednisone",
}

var diagnoses = []string{
	"Hypertension", "Type 2 Diabetes Mellitus", "Asthma", "Migraine",
	"Gout", "Insomnia", "Psoriasis", "Anemia (Iron deficiency)",
}

var hosts = []string{"localhost", "app01.internal", "app02.internal", "batch.internal"}

// failureStatuses are error codes a failed connect or statement may carry.
var failureStatuses = []int{1044, 1045, 1046, 1054, 1062, 1064, 1146, 1226}
