package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-scorer/internal/common"
	"loan-scorer/internal/evaluate"
	"loan-scorer/internal/loan"
)

const loansCSV = `Loan_ID,Gender,Married,Dependents,Education,Self_Employed,ApplicantIncome,CoapplicantIncome,LoanAmount,Loan_Amount_Term,Credit_History,Property_Area,Loan_Status
LP001,Male,Yes,0,Graduate,No,5849,0,,360,1,Urban,Y
LP002,Male,Yes,1,Graduate,No,4583,1508,128,360,1,Rural,N
LP003,Male,Yes,0,Graduate,Yes,3000,0,66,360,1,Urban,Y
LP004,Male,Yes,0,Not Graduate,No,2583,2358,120,360,1,Urban,Y
LP005,Male,No,0,Graduate,No,6000,0,141,360,1,Urban,Y
LP006,Male,Yes,2,Graduate,Yes,5417,4196,267,360,1,Urban,Y
LP007,Male,Yes,3+,Graduate,No,3036,2504,158,360,0,Semiurban,N
LP008,Female,No,0,Graduate,No,3510,0,76,360,0,Urban,N
LP009,,Yes,2,Graduate,,2600,1911,116,360,0,Semiurban,N
LP010,Male,No,0,Not Graduate,No,1800,1200,90,0,1,Rural,Y
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		common.EnvConfigFile, common.EnvDataPath, common.EnvTrainingData,
		common.EnvClassifierKind, common.EnvRemoteModelURL, common.EnvLogLevel,
		common.EnvLogFormat, common.EnvTrainIterations, common.EnvDecisionThreshold,
	} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setup(t *testing.T) (dataPath, csvPath string) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	csvPath = filepath.Join(dir, "loans.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(loansCSV), 0o644))
	return filepath.Join(dir, "models"), csvPath
}

func scoreArgs(dataPath string) []string {
	return []string{
		"score", "--data-path", dataPath,
		"--field", "Gender=Male",
		"--field", "Married=Yes",
		"--field", "Dependents=0",
		"--field", "ApplicantIncome=5000",
		"--field", "CoapplicantIncome=0",
		"--field", "LoanAmount=100",
		"--field", "Loan_Amount_Term=360",
		"--field", "Credit_History=1",
	}
}

func TestTrainScoreEvaluate(t *testing.T) {
	dataPath, csvPath := setup(t)

	out, err := run(t, "", "train", "--data", csvPath, "--data-path", dataPath, "--iterations", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "Rows: 10, used: 9, failed: 1, unlabeled: 0")
	assert.Contains(t, out, "Total_Income_Log")
	assert.Contains(t, out, "Classes: N=4, Y=5")
	assert.FileExists(t, filepath.Join(dataPath, "artifacts.db"))

	out, err = run(t, "", "artifacts", "--data-path", dataPath)
	require.NoError(t, err)
	for _, key := range []string{"classifier", "encoders", "feature_order", "metadata", "target_encoder", "transformer_state"} {
		assert.Contains(t, out, "  "+key+"\n")
	}
	assert.Contains(t, out, "Classifier: logistic")
	assert.Contains(t, out, "Training rows: 9, dropped: 1")

	out, err = run(t, "", scoreArgs(dataPath)...)
	require.NoError(t, err)
	var resp loan.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, []string{"APPROVED", "DECLINED"}, resp.Status)
	assert.GreaterOrEqual(t, resp.Score, 50.0)
	assert.Equal(t, 5.6, resp.DTI)
	assert.NotEmpty(t, resp.Advice)

	reports := filepath.Join(t.TempDir(), "reports")
	out, err = run(t, "", "evaluate", "--data", csvPath, "--data-path", dataPath, "--output", reports)
	require.NoError(t, err)
	assert.Contains(t, out, "Dataset: loans.csv")
	assert.Contains(t, out, "Rows: 10, scored: 9, labeled: 9")
	assert.Contains(t, out, "Failures (invalid_input): 1")
	assert.FileExists(t, filepath.Join(reports, evaluate.SummaryFile))
	assert.FileExists(t, filepath.Join(reports, evaluate.DecisionsFile))
	assert.FileExists(t, filepath.Join(reports, evaluate.JSONFile))

	_, err = run(t, "", "evaluate", "--data", csvPath, "--data-path", dataPath, "--no-record")
	require.NoError(t, err)

	out, err = run(t, "", "history", "loans.csv", "--data-path", dataPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "TIMESTAMP"))

	out, err = run(t, "", "history", "other.csv", "--data-path", dataPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No evaluations for other.csv")
}

func TestScore_JSONFromStdin(t *testing.T) {
	dataPath, csvPath := setup(t)
	_, err := run(t, "", "train", "--data", csvPath, "--data-path", dataPath, "--iterations", "200")
	require.NoError(t, err)

	body := `{"Gender":"Female","Married":"No","Dependents":"1","ApplicantIncome":"3000","LoanAmount":"120","Credit_History":"0"}`
	out, err := run(t, body, "score", "--json", "-", "--data-path", dataPath)
	require.NoError(t, err)

	var resp loan.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if resp.Status == "DECLINED" {
		assert.Contains(t, resp.Advice, "clearing existing debts")
	}
}

func TestScore_Failures(t *testing.T) {
	dataPath, csvPath := setup(t)

	_, err := run(t, "", scoreArgs(dataPath)...)
	assert.Error(t, err, "scoring before training must fail")

	_, err = run(t, "", "train", "--data", csvPath, "--data-path", dataPath, "--iterations", "200")
	require.NoError(t, err)

	_, err = run(t, "", "score", "--data-path", dataPath, "--field", "Gender=Male")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_mismatch")

	args := append(scoreArgs(dataPath), "--field", "Loan_Amount_Term=0")
	_, err = run(t, "", args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_input")

	_, err = run(t, "", "score", "--data-path", dataPath)
	assert.Error(t, err)
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "N=4, Y=5", formatCounts(map[string]int{"Y": 5, "N": 4}))
	assert.Equal(t, "", formatCounts(nil))
}

func TestTrain_MissingFile(t *testing.T) {
	dataPath, _ := setup(t)
	_, err := run(t, "", "train", "--data", filepath.Join(t.TempDir(), "missing.csv"), "--data-path", dataPath)
	assert.Error(t, err)
}

func TestReadApplication(t *testing.T) {
	app, err := readApplication(strings.NewReader(""), `{"Gender":"Male","LoanAmount":"100"}`, map[string]string{"LoanAmount": "150"})
	require.NoError(t, err)
	assert.Equal(t, loan.Application{"Gender": "Male", "LoanAmount": "150"}, app)

	app, err = readApplication(strings.NewReader(`{"Married":"Yes"}`), "-", nil)
	require.NoError(t, err)
	assert.Equal(t, loan.Application{"Married": "Yes"}, app)

	_, err = readApplication(strings.NewReader(""), `{"LoanAmount":100}`, nil)
	assert.Error(t, err)

	_, err = readApplication(strings.NewReader(""), "", nil)
	assert.Error(t, err)
}
