/*
Package metrics provides Prometheus metrics collection, exposition,
and lightweight health-check tracking for the OPC UA communications
stack.

Metrics are defined and registered at package init against the global
Prometheus registry and exposed for scraping through Handler(). A
Collector samples the dispatcher's collaborators (session registry,
channel registry, request handle table, PKI provider) on a timer and
sets opcua_sessions_total, opcua_channels_total,
opcua_request_handles_outstanding and opcua_rejected_certs_total; the
opcua-pki serve command increments opcua_trust_list_reloads_total. No
code in this module updates the other counters and histograms listed
below, so they stay at zero.

# Metrics Catalog

Session metrics:

  - opcua_sessions_total{state}: current sessions by state
  - opcua_sessions_created_total, opcua_sessions_closed_total,
    opcua_sessions_orphaned_total: lifecycle counters

Channel metrics:

  - opcua_channels_total{role}: connected channels by role
    (client/server)
  - opcua_channels_lost_total: channel loss events handled

Request handle table metrics:

  - opcua_request_handles_outstanding: current table occupancy
  - opcua_request_handle_validation_failures_total: handle/type
    mismatches rejected by the dispatcher

Dispatcher metrics:

  - opcua_dispatched_messages_total{direction,outcome}
  - opcua_dispatch_latency_seconds

PKI metrics:

  - opcua_cert_validations_total{status}
  - opcua_cert_validation_duration_seconds
  - opcua_rejected_certs_total: current length of the rejected list
  - opcua_trust_list_reloads_total

# Health Checks

HealthChecker (health.go) tracks named subsystem health independently
of Prometheus, for liveness/readiness JSON endpoints. Subsystems
Report their condition as it changes; Health aggregates every report
into one verdict, while Readiness answers only for the critical set
named at construction. The opcua-pki serve command wires both next to
the /metrics endpoint.
*/
package metrics
