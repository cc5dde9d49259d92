package topology

import (
	"fmt"
	"strings"
)

// scope produces ARM resource ids for one subscription and resource group.
// Ids depend only on names, so equal input always yields equal graphs.
type scope struct {
	subscriptionID string
	resourceGroup  string
}

func (s scope) resourceGroupID() string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", s.subscriptionID, s.resourceGroup)
}

func (s scope) provider(namespace, resourceType, name string) string {
	return fmt.Sprintf("%s/providers/%s/%s/%s", s.resourceGroupID(), namespace, resourceType, name)
}

func (s scope) publicIPPrefixID(name string) string {
	return s.provider("Microsoft.Network", "publicIPPrefixes", name)
}

func (s scope) natGatewayID(name string) string {
	return s.provider("Microsoft.Network", "natGateways", name)
}

func (s scope) virtualNetworkID(name string) string {
	return s.provider("Microsoft.Network", "virtualNetworks", name)
}

func (s scope) subnetID(vnet, name string) string {
	return s.virtualNetworkID(vnet) + "/subnets/" + name
}

func (s scope) peeringID(vnet, name string) string {
	return s.virtualNetworkID(vnet) + "/virtualNetworkPeerings/" + name
}

func (s scope) publicIPAddressID(name string) string {
	return s.provider("Microsoft.Network", "publicIPAddresses", name)
}

func (s scope) networkInterfaceID(name string) string {
	return s.provider("Microsoft.Network", "networkInterfaces", name)
}

func (s scope) virtualMachineID(name string) string {
	return s.provider("Microsoft.Compute", "virtualMachines", name)
}

// ResourceName returns the last segment of an ARM id.
func ResourceName(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
