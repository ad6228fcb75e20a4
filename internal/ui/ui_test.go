package ui

import (
	"bytes"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/rdsctl/pkg/types"
)

func sampleDatabases() []types.Database {
	return []types.Database{
		{ID: "orders-db", Engine: "postgres", Version: "16.3", State: "available", Endpoint: "orders.abc.rds.amazonaws.com", Port: 5432},
		{ID: "reports-db", Engine: "postgres", State: "stopped"},
		{ID: "legacy", Engine: "mysql", State: "starting"},
	}
}

func TestPrintDatabaseTable(t *testing.T) {
	var buf bytes.Buffer
	PrintDatabaseTable(&buf, sampleDatabases())

	out := buf.String()
	assert.Contains(t, out, "orders-db")
	assert.Contains(t, out, "postgres 16.3")
	assert.Contains(t, out, "orders.abc.rds.amazonaws.com:5432")
	assert.Contains(t, out, "3 instances")
	assert.Contains(t, out, "1 available")
	assert.Contains(t, out, "1 stopped")
}

func TestStateIndicator(t *testing.T) {
	assert.Equal(t, "●", stateIndicator("available"))
	assert.Equal(t, "○", stateIndicator("stopped"))
	assert.Equal(t, "◐", stateIndicator("starting"))
	assert.Equal(t, "◐", stateIndicator("stopping"))
	assert.Equal(t, "✗", stateIndicator("failed"))
}

func TestDBModelFilterAndChoose(t *testing.T) {
	var m tea.Model = newDBModel(sampleDatabases())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("mysql")})
	model := m.(DBModel)
	require.Len(t, model.filtered, 1)
	assert.Equal(t, "legacy", model.filtered[0].ID)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	model = m.(DBModel)
	require.NotNil(t, model.selected)
	assert.Equal(t, "legacy", model.selected.ID)
	assert.Equal(t, DBActionStart, model.action)
	assert.False(t, model.cancelled)
}

func TestDBModelNavigation(t *testing.T) {
	var m tea.Model = newDBModel(sampleDatabases())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.(DBModel).cursor)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := m.(DBModel)
	require.NotNil(t, model.selected)
	assert.Equal(t, "legacy", model.selected.ID)
	assert.Equal(t, DBActionConnect, model.action)
}

func TestDBModelEscCancels(t *testing.T) {
	var m tea.Model = newDBModel(sampleDatabases())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model := m.(DBModel)
	assert.True(t, model.cancelled)
	assert.Nil(t, model.selected)
	assert.Empty(t, model.View())
}

func TestDBModelNoMatchesKeepsRunning(t *testing.T) {
	var m tea.Model = newDBModel(sampleDatabases())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("nothing")})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Nil(t, m.(DBModel).selected)
	assert.Contains(t, m.View(), "No instances found")
}
