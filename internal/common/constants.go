package common

// Application field names, as submitted by the application form and as they
// appear in the training table header.
const (
	FieldLoanID            = "Loan_ID"
	FieldGender            = "Gender"
	FieldMarried           = "Married"
	FieldDependents        = "Dependents"
	FieldEducation         = "Education"
	FieldSelfEmployed      = "Self_Employed"
	FieldApplicantIncome   = "ApplicantIncome"
	FieldCoapplicantIncome = "CoapplicantIncome"
	FieldLoanAmount        = "LoanAmount"
	FieldLoanAmountTerm    = "Loan_Amount_Term"
	FieldCreditHistory     = "Credit_History"
	FieldPropertyArea      = "Property_Area"
	FieldLoanStatus        = "Loan_Status"
)

// Engineered feature names
const (
	FeatureTotalIncome    = "Total_Income"
	FeatureEMI            = "EMI"
	FeatureTotalIncomeLog = "Total_Income_Log"
)

// CategoricalColumns are label encoded before inference.
var CategoricalColumns = []string{
	FieldGender,
	FieldMarried,
	FieldDependents,
	FieldEducation,
	FieldSelfEmployed,
	FieldPropertyArea,
}

// NumericColumns are coerced to float64 on input.
var NumericColumns = []string{
	FieldApplicantIncome,
	FieldCoapplicantIncome,
	FieldLoanAmount,
	FieldLoanAmountTerm,
	FieldCreditHistory,
}

// IsNumeric reports whether the column holds a numeric field.
func IsNumeric(column string) bool {
	for _, c := range NumericColumns {
		if c == column {
			return true
		}
	}
	return false
}

// Serving-time defaults for optional form fields
const (
	DefaultEducation    = "Graduate"
	DefaultPropertyArea = "Semiurban"
	DefaultSelfEmployed = "No"
)

// Transformer fallbacks used when no fitted statistics are available
const (
	FallbackGender        = "Male"
	FallbackMarried       = "Yes"
	FallbackLoanAmount    = 120.0
	FallbackCreditHistory = 1.0
	DefaultLoanAmountTerm = 360.0
)

// Advisory constants
const (
	LoanAmountUnit           = 1000.0 // LoanAmount is submitted in thousands
	AdvisoryTermMonths       = 360.0
	MaxDTIRatio              = 0.4
	TargetDTIRatio           = 0.3
	MonthsPerYear            = 12.0
	UnseenCategoryCode       = 0
	DefaultDecisionThreshold = 0.5
)

// Environment variable keys
const (
	EnvConfigFile         = "CONFIG_FILE"
	EnvDataPath           = "DATA_PATH"
	EnvTrainingData       = "TRAINING_DATA"
	EnvListenAddr         = "LISTEN_ADDR"
	EnvReadTimeout        = "READ_TIMEOUT"
	EnvWriteTimeout       = "WRITE_TIMEOUT"
	EnvClassifierKind     = "CLASSIFIER_KIND"
	EnvRemoteModelURL     = "REMOTE_MODEL_URL"
	EnvRemoteModelTimeout = "REMOTE_MODEL_TIMEOUT"
	EnvTrainIterations    = "TRAIN_ITERATIONS"
	EnvTrainL2            = "TRAIN_L2"
	EnvDecisionThreshold  = "DECISION_THRESHOLD"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
)

// Configuration defaults
const (
	DefaultDataPath        = "models"
	DefaultTrainingData    = "data/raw/loan_prediction.csv"
	DefaultListenAddr      = ":8080"
	DefaultClassifierKind  = "logistic"
	DefaultTrainIterations = 200
	DefaultTrainL2         = 0.001
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
)

// Classifier kinds
const (
	ClassifierLogistic = "logistic"
	ClassifierRemote   = "remote"
)
