package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "DAS API",
        "description": "Site routing and approval workflow for equipment offline and RTU tracker sheets",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Actions", "description": "Routing a site row to a responsible team"},
        {"name": "Approvals", "description": "Resolution approvals and their outcome on site records"},
        {"name": "Sites", "description": "Site records of both collections"},
        {"name": "Reports", "description": "Filtered, paged and exported views over site records"}
    ],
    "paths": {
        "/actions/submit": {
            "post": {
                "tags": ["Actions"],
                "summary": "Route a site row to a team",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitActionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Open action exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actions/my-actions": {
            "get": {
                "tags": ["Actions"],
                "summary": "Actions assigned to the caller",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["Pending", "In Progress", "Completed"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actions/my-routed-actions": {
            "get": {
                "tags": ["Actions"],
                "summary": "Actions the caller routed",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actions": {
            "get": {
                "tags": ["Actions"],
                "summary": "Every action (Admin, CCR, Equipment)",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actions/{actionId}/status": {
            "put": {
                "tags": ["Actions"],
                "summary": "Move an action forward",
                "parameters": [
                    {"name": "actionId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateActionStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actions/{actionId}/reroute": {
            "put": {
                "tags": ["Actions"],
                "summary": "Hand an open action to another team",
                "parameters": [
                    {"name": "actionId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RerouteActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Action already completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actions/{actionId}": {
            "delete": {
                "tags": ["Actions"],
                "summary": "Delete an action",
                "parameters": [
                    {"name": "actionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Approvals the caller submitted or must decide",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "approvalType", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Approvals"],
                "summary": "Submit a site record for approval",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateApprovalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid reference", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Pending approval exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/stats": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Approval counts per status and type",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/check": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Whether a pending approval exists for a row (Admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckApprovalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/reset": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Delete approvals and clear their outcome on site records (Admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/ResetApprovalsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/{id}": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Approval detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/{id}/status": {
            "put": {
                "tags": ["Approvals"],
                "summary": "Decide a pending approval",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateApprovalStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the approver", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites": {
            "post": {
                "tags": ["Sites"],
                "summary": "Create or merge one site record",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SiteRecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/bulk": {
            "post": {
                "tags": ["Sites"],
                "summary": "Upsert many site records atomically",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkSiteRecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/file/{fileId}": {
            "get": {
                "tags": ["Sites"],
                "summary": "Site records of one uploaded file visible to the caller",
                "parameters": [
                    {"name": "fileId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "Filtered and paged report",
                "parameters": [
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "fileId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "ccrStatus", "in": "query", "type": "string"},
                    {"name": "division", "in": "query", "type": "string"},
                    {"name": "siteCode", "in": "query", "type": "string"},
                    {"name": "taskStatus", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "xlsx", "pdf"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/reports/local-remote": {
            "get": {
                "tags": ["Reports"],
                "summary": "Local and remote site counts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/reports/details": {
            "get": {
                "tags": ["Reports"],
                "summary": "Site records with their actions and approvals",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/reports/filters": {
            "get": {
                "tags": ["Reports"],
                "summary": "Distinct filter values",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/update-days-offline": {
            "put": {
                "tags": ["Sites"],
                "summary": "Refresh days offline for a file",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateDaysOfflineRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/equipment-offline-sites/{fileId}/{rowKey}": {
            "delete": {
                "tags": ["Sites"],
                "summary": "Delete a site record",
                "parameters": [
                    {"name": "fileId", "in": "path", "required": true, "type": "string"},
                    {"name": "rowKey", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        }
    },
    "definitions": {
        "SubmitActionRequest": {
            "type": "object",
            "required": ["fileId", "rowKey", "siteCode", "rowData", "routing", "typeOfIssue"],
            "properties": {
                "collection": {"type": "string", "enum": ["EQUIPMENT_OFFLINE", "RTU_TRACKER"]},
                "fileId": {"type": "string"},
                "rowKey": {"type": "string"},
                "siteCode": {"type": "string"},
                "rowIndex": {"type": "integer"},
                "rowData": {"type": "object"},
                "headers": {"type": "array", "items": {"type": "string"}},
                "routing": {"type": "string"},
                "typeOfIssue": {"type": "string"},
                "remarks": {"type": "string"},
                "photo": {"type": "string"},
                "photos": {"type": "array", "items": {"type": "string"}},
                "priority": {"type": "string", "enum": ["Low", "Medium", "High"]},
                "assignedToUserId": {"type": "string"},
                "division": {"type": "string"}
            }
        },
        "UpdateActionStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["Pending", "In Progress", "Completed"]}
            }
        },
        "RerouteActionRequest": {
            "type": "object",
            "required": ["routing"],
            "properties": {
                "routing": {"type": "string"},
                "assignedToUserId": {"type": "string"},
                "remarks": {"type": "string"},
                "priority": {"type": "string"}
            }
        },
        "CreateApprovalRequest": {
            "type": "object",
            "required": ["approvalType"],
            "properties": {
                "actionId": {"type": "string"},
                "equipmentOfflineSiteId": {"type": "string"},
                "rtuTrackerSiteId": {"type": "string"},
                "approvalType": {"type": "string", "enum": ["AMC Resolution Approval", "CCR Resolution Approval", "RTU Tracker Approval"]},
                "assignedToUserId": {"type": "string"},
                "submissionRemarks": {"type": "string"},
                "photos": {"type": "array", "items": {"type": "string"}},
                "supportDocuments": {"type": "array", "items": {"type": "string"}}
            }
        },
        "UpdateApprovalStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["Approved", "Kept for Monitoring", "Recheck Requested"]},
                "remarks": {"type": "string"}
            }
        },
        "CheckApprovalRequest": {
            "type": "object",
            "required": ["fileId", "rowKey", "approvalType"],
            "properties": {
                "fileId": {"type": "string"},
                "rowKey": {"type": "string"},
                "approvalType": {"type": "string"}
            }
        },
        "ResetApprovalsRequest": {
            "type": "object",
            "properties": {
                "from": {"type": "string", "format": "date-time"},
                "to": {"type": "string", "format": "date-time"},
                "siteCode": {"type": "string"},
                "approvalType": {"type": "string"}
            }
        },
        "SiteRecordRequest": {
            "type": "object",
            "required": ["fileId", "rowKey"],
            "properties": {
                "fileId": {"type": "string"},
                "rowKey": {"type": "string"},
                "siteCode": {"type": "string"},
                "division": {"type": "string"},
                "originalRowData": {"type": "object"},
                "siteObservations": {"type": "string"},
                "ccrStatus": {"type": "string"},
                "taskStatus": {"type": "string"},
                "typeOfIssue": {"type": "string"},
                "photos": {"type": "array", "items": {"type": "string"}},
                "remarks": {"type": "string"},
                "supportDocuments": {"type": "array", "items": {"type": "string"}},
                "daysOffline": {"type": "integer"},
                "savedFrom": {"type": "string"}
            }
        },
        "BulkSiteRecordRequest": {
            "type": "object",
            "required": ["records"],
            "properties": {
                "fileId": {"type": "string"},
                "records": {"type": "array", "items": {"$ref": "#/definitions/SiteRecordRequest"}}
            }
        },
        "UpdateDaysOfflineRequest": {
            "type": "object",
            "required": ["fileId", "updates"],
            "properties": {
                "fileId": {"type": "string"},
                "updates": {"type": "array", "items": {"type": "object"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"type": "string"},
                "code": {"type": "string"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
