package installments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grana-app/grana/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func expense(id, description, amount, date string) domain.Transaction {
	return domain.Transaction{
		ID:            id,
		Description:   description,
		Amount:        dec(amount),
		Type:          domain.TypeExpense,
		Date:          domain.MustDate(date),
		PaymentMethod: domain.PaymentCredito,
	}
}

func TestSplit_RoundingRemainderToLast(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		n       int
		want    []string
	}{
		{"100 in 3", "100.00", 3, []string{"33.33", "33.33", "33.34"}},
		{"10 in 4", "10.00", 4, []string{"2.50", "2.50", "2.50", "2.50"}},
		{"0.05 in 2", "0.05", 2, []string{"0.02", "0.03"}},
		{"999.99 in 7", "999.99", 7, []string{"142.85", "142.85", "142.85", "142.85", "142.85", "142.85", "142.89"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members, err := Split(expense("p1", "Compra", tt.amount, "2025-01-15"), tt.n)
			require.NoError(t, err)
			require.Len(t, members, tt.n)

			sum := decimal.Zero
			for i, m := range members {
				assert.True(t, m.Amount.Equal(dec(tt.want[i])), "member %d = %s, want %s", i+1, m.Amount, tt.want[i])
				sum = sum.Add(m.Amount)
			}
			assert.True(t, sum.Equal(dec(tt.amount)), "sum = %s, want %s", sum, tt.amount)
		})
	}
}

func TestSplit_IdsDatesAndDetails(t *testing.T) {
	members, err := Split(expense("p9", "Notebook", "3000.00", "2025-01-15"), 3)
	require.NoError(t, err)

	assert.Equal(t, "p9-1", members[0].ID)
	assert.Equal(t, "p9-3", members[2].ID)
	assert.Equal(t, "Notebook (1/3)", members[0].Description)
	assert.Equal(t, "Notebook (3/3)", members[2].Description)
	assert.Equal(t, domain.MustDate("2025-01-15"), members[0].Date)
	assert.Equal(t, domain.MustDate("2025-02-15"), members[1].Date)
	assert.Equal(t, domain.MustDate("2025-03-15"), members[2].Date)

	for i, m := range members {
		require.NotNil(t, m.InstallmentDetails)
		assert.Equal(t, "p9", m.InstallmentDetails.PurchaseID)
		assert.Equal(t, i+1, m.InstallmentDetails.Current)
		assert.Equal(t, 3, m.InstallmentDetails.Total)
		assert.True(t, m.InstallmentDetails.TotalAmount.Equal(dec("3000.00")))
	}
}

func TestSplit_MonthEndRollover(t *testing.T) {
	// Jan 31 + 1 month overflows February and rolls into March. Native date
	// semantics, not clamped.
	members, err := Split(expense("p2", "Sofa", "200.00", "2025-01-31"), 2)
	require.NoError(t, err)
	assert.Equal(t, domain.MustDate("2025-01-31"), members[0].Date)
	assert.Equal(t, domain.MustDate("2025-03-03"), members[1].Date)
}

func TestSplit_Rejections(t *testing.T) {
	_, err := Split(expense("p3", "x", "10.00", "2025-01-01"), 1)
	assert.Error(t, err)

	income := expense("p4", "x", "10.00", "2025-01-01")
	income.Type = domain.TypeIncome
	_, err = Split(income, 3)
	assert.Error(t, err)
}

func TestMergeSeries_RoundTrip(t *testing.T) {
	original := expense("p5", "Geladeira", "2500.00", "2025-02-10")
	members, err := Split(original, 6)
	require.NoError(t, err)

	merged := MergeSeries(members, "p5")
	require.Len(t, merged, 1)

	got := merged[0]
	assert.Equal(t, "p5", got.ID)
	assert.Equal(t, "Geladeira", got.Description)
	assert.True(t, got.Amount.Equal(dec("2500.00")))
	assert.Equal(t, domain.MustDate("2025-02-10"), got.Date)
	assert.Nil(t, got.InstallmentDetails)
}

func TestMergeSeries_LeavesOthersInOrder(t *testing.T) {
	members, err := Split(expense("p6", "TV", "900.00", "2025-03-01"), 3)
	require.NoError(t, err)

	txs := []domain.Transaction{expense("a", "Mercado", "80.00", "2025-03-02")}
	txs = append(txs, members[0], members[1])
	txs = append(txs, expense("b", "Luz", "120.00", "2025-03-05"), members[2])

	out := MergeSeries(txs, "p6")
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "p6", out[1].ID) // single replaces the first member slot
	assert.Equal(t, "b", out[2].ID)
}

func TestMergeSeries_UnknownPurchaseIsNoop(t *testing.T) {
	txs := []domain.Transaction{expense("a", "Mercado", "80.00", "2025-03-02")}
	out := MergeSeries(txs, "missing")
	assert.Equal(t, txs, out)
}

func TestEditSeries_DowngradeToSingle(t *testing.T) {
	members, err := Split(expense("p7", "Celular", "1200.00", "2025-04-01"), 6)
	require.NoError(t, err)

	updated := expense("", "Celular", "1200.00", "2025-04-01")
	out, err := EditSeries(members, "p7-3", updated, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "p7", out[0].ID)
	assert.True(t, out[0].Amount.Equal(dec("1200.00")))
	assert.Nil(t, out[0].InstallmentDetails)
}

func TestEditSeries_Resize(t *testing.T) {
	members, err := Split(expense("p8", "Curso", "1000.00", "2025-05-20"), 4)
	require.NoError(t, err)

	updated := expense("", "Curso", "1000.00", "2025-05-20")
	out, err := EditSeries(members, "p8-1", updated, 5)
	require.NoError(t, err)
	require.Len(t, out, 5)

	sum := decimal.Zero
	for i, m := range out {
		assert.Equal(t, domain.InstallmentID("p8", i+1), m.ID)
		sum = sum.Add(m.Amount)
	}
	assert.True(t, sum.Equal(dec("1000.00")))
}

func TestEditSeries_SingleToSeries(t *testing.T) {
	txs := []domain.Transaction{
		expense("a", "Mercado", "80.00", "2025-03-02"),
		expense("s1", "Bicicleta", "600.00", "2025-03-10"),
	}
	updated := expense("", "Bicicleta", "600.00", "2025-03-10")
	out, err := EditSeries(txs, "s1", updated, 3)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "s1-1", out[1].ID) // series keeps the original id as purchase id
}

func TestEditSeries_IncomeNeverSplits(t *testing.T) {
	txs := []domain.Transaction{expense("s2", "Bonus", "500.00", "2025-06-01")}
	updated := txs[0]
	updated.ID = ""
	updated.Type = domain.TypeIncome

	out, err := EditSeries(txs, "s2", updated, 12)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].InstallmentDetails)
}

func TestEditSeries_MissingID(t *testing.T) {
	_, err := EditSeries(nil, "nope", domain.Transaction{}, 2)
	assert.Error(t, err)
}

func TestStripSeriesSuffix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Notebook (2/10)", "Notebook"},
		{"Notebook", "Notebook"},
		{"Aluguel (casa)", "Aluguel (casa)"},
		{"Estranho (2/10) extra", "Estranho (2/10) extra"},
		{"Coincidencia (3/4)", "Coincidencia"}, // documented lossy case
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripSeriesSuffix(tt.in), "input %q", tt.in)
	}
}
