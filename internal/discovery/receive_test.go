package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchingLocalServicesMatchesExactServiceType(t *testing.T) {
	e := testEngine(t)
	info := testLightLampInfo("lamp-match-test", 9201)
	_, err := e.Register(context.Background(), info)
	require.NoError(t, err)

	matches := e.matchingLocalServices(info.ServiceType)
	require.Len(t, matches, 1)
	require.Equal(t, info.InstanceName, matches[0].InstanceName)
}

func TestMatchingLocalServicesMatchesMetaServiceName(t *testing.T) {
	e := testEngine(t)
	info := testLightLampInfo("lamp-meta-test", 9202)
	_, err := e.Register(context.Background(), info)
	require.NoError(t, err)

	matches := e.matchingLocalServices(metaServiceName)
	require.Len(t, matches, 1)
}

func TestMatchingLocalServicesNoMatchForUnknownType(t *testing.T) {
	e := testEngine(t)
	_, err := e.Register(context.Background(), testLightLampInfo("lamp-nomatch-test", 9203))
	require.NoError(t, err)

	matches := e.matchingLocalServices("_fartdetector._tcp.local.")
	require.Empty(t, matches)
}
