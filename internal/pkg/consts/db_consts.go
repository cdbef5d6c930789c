package consts

const (
	LoanApplicationsCollection = "loan_applications"
	SagaTasksCollection        = "saga_tasks"
	LoanProductsCollection     = "loan_products"
)
