package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Loan_ID,Gender,Married,ApplicantIncome,CoapplicantIncome,LoanAmount,Loan_Status
LP001002,Male,No,5849,0,,Y
LP001003,Male,Yes,4583,1508,128,N
LP001005,,Yes,3000
`

func TestRead(t *testing.T) {
	ds, err := Read(strings.NewReader(sample), ',')
	require.NoError(t, err)

	assert.Equal(t, []string{"Loan_ID", "Gender", "Married", "ApplicantIncome", "CoapplicantIncome", "LoanAmount", "Loan_Status"}, ds.Columns)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, "4583", ds.Records[1]["ApplicantIncome"])
	assert.Equal(t, "", ds.Records[0]["LoanAmount"])

	_, ok := ds.Records[2]["Loan_Status"]
	assert.False(t, ok, "short rows leave trailing columns absent")

	assert.True(t, ds.HasColumn("Loan_Status"))
	assert.False(t, ds.HasColumn("Credit_History"))
}

func TestRead_Rows(t *testing.T) {
	ds, err := Read(strings.NewReader(sample), ',')
	require.NoError(t, err)

	rows := ds.Rows()
	require.Len(t, rows, 3)
	assert.False(t, rows[0].Has("LoanAmount"))
	assert.Equal(t, 128.0, rows[1].Numeric["LoanAmount"])
	assert.Equal(t, "", rows[2].Categorical["Gender"])
}

func TestRead_Semicolon(t *testing.T) {
	ds, err := Read(strings.NewReader("\ufeffGender;Married\nFemale;No\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"Gender", "Married"}, ds.Columns)
	assert.Equal(t, "No", ds.Records[0]["Married"])
}

func TestRead_EmptyInput(t *testing.T) {
	_, err := Read(strings.NewReader(""), ',')
	assert.ErrorIs(t, err, ErrEmptyHeader)

	_, err = Read(strings.NewReader("Gender,,Married\n"), ',')
	assert.ErrorIs(t, err, ErrEmptyHeader)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loans.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
