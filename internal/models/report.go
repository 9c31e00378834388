package models

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// Device status buckets of the local-remote report.
const (
	DeviceLocal   = "Local"
	DeviceRemote  = "Remote"
	DeviceUnknown = "Unknown"
)

// LocalRemoteRow is one site in the device status cross-reference.
type LocalRemoteRow struct {
	SiteRecordID     string     `json:"siteRecordId"`
	FileID           string     `json:"fileId"`
	RowKey           string     `json:"rowKey"`
	SiteCode         string     `json:"siteCode"`
	Division         string     `json:"division"`
	Kind             RecordKind `json:"kind"`
	DeviceStatus     string     `json:"deviceStatus"`
	RawDeviceStatus  string     `json:"rawDeviceStatus"`
	SiteObservations string     `json:"siteObservations"`
	CCRStatus        string     `json:"ccrStatus"`
}

// LocalRemoteTotals counts rows per device status bucket.
type LocalRemoteTotals struct {
	Local   int `json:"local"`
	Remote  int `json:"remote"`
	Unknown int `json:"unknown"`
}

// LocalRemoteReport is the payload of the local-remote endpoint.
type LocalRemoteReport struct {
	Rows   []LocalRemoteRow  `json:"rows"`
	Totals LocalRemoteTotals `json:"totals"`
}

// SiteDetails groups every visible record of a site code.
type SiteDetails struct {
	SiteCode  string       `json:"siteCode"`
	Records   []SiteRecord `json:"records"`
	Actions   []Action     `json:"actions"`
	Approvals []Approval   `json:"approvals"`
}

// ReportFilterOptions lists distinct values available to report filters.
type ReportFilterOptions struct {
	Divisions    []string `json:"divisions"`
	SiteCodes    []string `json:"siteCodes"`
	Observations []string `json:"siteObservations"`
	CCRStatuses  []string `json:"ccrStatuses"`
	TaskStatuses []string `json:"taskStatuses"`
}
