package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTopology = `
resource_group_name: rg-from-file
tags:
  owner: netops
vnets:
  - name: CoreServicesVnet
    region: eastus
    vnet_address: 10.0.0.0/16
    subnets:
      - name: A
        subnet: 10.0.1.0/24
  - name: ManufacturingVnet
    region: eastus
    vnet_address: 10.1.0.0/16
    subnets:
      - name: ManufacturingSystemSubnet
        subnet: 10.1.1.0/24
vms:
  - name: web
    location: eastus
    nic_subnet: A
    nic_name: web-nic
vms_no_public_ip:
  - name: worker
    location: eastus
    nic_subnet: ManufacturingSystemSubnet
    nic_name: worker-nic
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(context.Background(), writeFile(t, sampleTopology))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.ResourceGroupName != "rg-from-file" {
		t.Errorf("ResourceGroupName = %q", cfg.ResourceGroupName)
	}
	if len(cfg.VNets) != 2 {
		t.Fatalf("len(VNets) = %d, want 2", len(cfg.VNets))
	}
	if cfg.VNets[0].Name != "CoreServicesVnet" || cfg.VNets[1].Name != "ManufacturingVnet" {
		t.Errorf("VNets out of file order: %s, %s", cfg.VNets[0].Name, cfg.VNets[1].Name)
	}
	if got := cfg.VNets[1].Subnets[0].Subnet; got != "10.1.1.0/24" {
		t.Errorf("subnet prefix = %q, want 10.1.1.0/24", got)
	}
	if len(cfg.VMs) != 1 || cfg.VMs[0].NICName != "web-nic" {
		t.Errorf("VMs = %+v", cfg.VMs)
	}
	if len(cfg.VMsNoPublicIP) != 1 || cfg.VMsNoPublicIP[0].NICSubnet != "ManufacturingSystemSubnet" {
		t.Errorf("VMsNoPublicIP = %+v", cfg.VMsNoPublicIP)
	}
	if cfg.Tags["owner"] != "netops" {
		t.Errorf("Tags = %v", cfg.Tags)
	}
	if cfg.NATGateway.SubnetName != DefaultNATSubnetName {
		t.Errorf("defaults not applied, NAT subnet = %q", cfg.NATGateway.SubnetName)
	}
	if cfg.AdminPassword != "" {
		t.Error("AdminPassword must never come from the file")
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "vnets: [unterminated",
			wantErr: "failed to parse config file",
		},
		{
			name:    "missing vnets",
			content: "resource_group_name: rg\n",
			wantErr: "vnets table is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(context.Background(), writeFile(t, tt.content))
			if err == nil {
				t.Fatal("ParseConfig() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseConfig_MissingFile(t *testing.T) {
	_, err := ParseConfig(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %v, want read failure", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvResourceGroupName: "rg-env",
		EnvAdminPassword:     "s3cret!",
	}
	cfg := &Config{ResourceGroupName: "rg-file", SubscriptionID: "sub-file"}

	ApplyEnv(cfg, func(key string) string { return env[key] })

	if cfg.ResourceGroupName != "rg-env" {
		t.Errorf("ResourceGroupName = %q, want rg-env", cfg.ResourceGroupName)
	}
	if cfg.AdminPassword != "s3cret!" {
		t.Errorf("AdminPassword not taken from environment")
	}
	if cfg.SubscriptionID != "sub-file" {
		t.Errorf("SubscriptionID = %q, unset variable must keep file value", cfg.SubscriptionID)
	}
}

func TestLoad_DefaultTables(t *testing.T) {
	t.Setenv(EnvResourceGroupName, "rg-lab")
	t.Setenv(EnvAdminPassword, "pw")

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ResourceGroupName != "rg-lab" || cfg.AdminPassword != "pw" {
		t.Errorf("environment not applied: rg=%q", cfg.ResourceGroupName)
	}
	if len(cfg.VNets) != len(Default().VNets) {
		t.Errorf("len(VNets) = %d, want built-in table", len(cfg.VNets))
	}
}

func TestMarshal_OmitsPassword(t *testing.T) {
	cfg := Default()
	cfg.AdminPassword = "do-not-leak"

	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "do-not-leak") {
		t.Error("marshalled config contains the admin password")
	}
	if !strings.Contains(string(data), "ManufacturingSystemSubnet") {
		t.Error("marshalled config is missing the VNET table")
	}
}
